package serve

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"github.com/squeakhq/squeakd/credential"
	"github.com/squeakhq/squeakd/csrf"
	"github.com/squeakhq/squeakd/internal/cmdflags"
	"github.com/squeakhq/squeakd/internal/httpserver"
	"github.com/squeakhq/squeakd/internal/kdf"
	"github.com/squeakhq/squeakd/internal/logutil"
	"github.com/squeakhq/squeakd/internal/secrets"
	"github.com/squeakhq/squeakd/session"
	"github.com/squeakhq/squeakd/webapp"
	"github.com/urfave/cli/v2"
)

const redisKeyPrefix = "squeakd:session:"

func Cmd() *cli.Command {
	var (
		bind            = "localhost:8000"
		mode            = "stateless"
		credentialDB    = "squeakd-credentials.db"
		redisAddr       string
		sessionTTL      = time.Minute * 15
		csrfTTL         = time.Minute * 5
		iterations      int
		keyLength       int
		secretVar       string
		csrfKeyVar      string
		insecureCookies bool
		bindClient      bool
	)
	return &cli.Command{
		Name:  "serve",
		Usage: "Start the authentication server",
		Flags: []cli.Flag{
			cmdflags.Bind(&bind),
			cmdflags.Mode(&mode),
			cmdflags.CredentialDB(&credentialDB),
			cmdflags.RedisAddr(&redisAddr),
			cmdflags.SessionTTL(&sessionTTL),
			cmdflags.CSRFTTL(&csrfTTL),
			cmdflags.KDFIterations(&iterations),
			cmdflags.KDFKeyLength(&keyLength),
			cmdflags.SessionSecretEnvVar(&secretVar),
			cmdflags.CSRFKeyEnvVar(&csrfKeyVar),
			cmdflags.InsecureCookies(&insecureCookies),
			cmdflags.BindClient(&bindClient),
		},
		Action: func(c *cli.Context) error {
			ctx := logutil.WithLogger(c.Context, log.Logger)

			sessionSecret, err := secrets.FromEnvHex(secretVar, session.MinSecretLength)
			if err != nil {
				return err
			}
			csrfKey, err := secrets.FromEnvBase64(csrfKeyVar, 32)
			if err != nil {
				return err
			}

			gate := kdf.NewGate(0)
			csrfCodec, err := csrf.NewCodec(csrfKey, gate)
			if err != nil {
				return err
			}

			creds, err := credential.OpenSqliteStore(ctx, credentialDB)
			if err != nil {
				return err
			}
			defer creds.Close()

			auth, err := authenticator(ctx, mode, authConfig{
				secret:          sessionSecret,
				redisAddr:       redisAddr,
				sessionTTL:      sessionTTL,
				insecureCookies: insecureCookies,
				bindClient:      bindClient,
			})
			if err != nil {
				return err
			}

			app := webapp.New(webapp.Config{
				Credentials: creds,
				Params:      credential.Params{Iterations: iterations, KeyLength: keyLength, Gate: gate},
				Auth:        auth,
				CSRF:        csrfCodec,
				CSRFTTL:     csrfTTL,
			})
			return httpserver.Serve(ctx, bind, app.Handler(log.Logger))
		},
	}
}

type authConfig struct {
	secret          []byte
	redisAddr       string
	sessionTTL      time.Duration
	insecureCookies bool
	bindClient      bool
}

func authenticator(ctx context.Context, mode string, cfg authConfig) (webapp.Authenticator, error) {
	switch mode {
	case "stateless":
		codec, err := session.NewCodec(cfg.secret)
		if err != nil {
			return nil, err
		}
		binding := webapp.BindUsername
		if cfg.bindClient {
			binding = webapp.BindClient
		}
		return webapp.NewStatelessAuthenticator(codec, binding, cfg.sessionTTL, !cfg.insecureCookies), nil
	case "stateful":
		store, err := sessionStore(cfg)
		if err != nil {
			return nil, err
		}
		manager := session.NewManager(store, cfg.sessionTTL)
		// No session survives a restart; the sweep must finish before the
		// listener accepts a single request.
		if err := manager.Sweep(ctx); err != nil {
			return nil, fmt.Errorf("unable to sweep old sessions, cause %w", err)
		}
		return webapp.NewStatefulAuthenticator(manager, !cfg.insecureCookies), nil
	default:
		return nil, fmt.Errorf("unknown deployment mode %v, expected stateless or stateful", mode)
	}
}

func sessionStore(cfg authConfig) (session.Store, error) {
	if cfg.redisAddr == "" {
		return session.NewMemoryStore(cfg.sessionTTL)
	}
	client := redis.NewClient(&redis.Options{Addr: cfg.redisAddr})
	return session.NewRedisStore(client, redisKeyPrefix), nil
}
