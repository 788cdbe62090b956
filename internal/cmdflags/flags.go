package cmdflags

import (
	"time"

	"github.com/squeakhq/squeakd/credential"
	"github.com/squeakhq/squeakd/internal/secrets"
	"github.com/urfave/cli/v2"
)

func Bind(out *string) cli.Flag {
	return &cli.StringFlag{
		Name:        "bind",
		Aliases:     []string{"b"},
		Usage:       "Address to listen on",
		EnvVars:     []string{"SQUEAKD_BIND"},
		Destination: out,
		Value:       *out,
	}
}

func Mode(out *string) cli.Flag {
	return &cli.StringFlag{
		Name:        "mode",
		Usage:       "Session deployment mode: stateless (self-contained signed tokens) or stateful (server-side session records)",
		EnvVars:     []string{"SQUEAKD_MODE"},
		Destination: out,
		Value:       *out,
	}
}

func CredentialDB(out *string) cli.Flag {
	return &cli.StringFlag{
		Name:        "credential-db",
		Aliases:     []string{"db"},
		Usage:       "Path to the sqlite credential database",
		EnvVars:     []string{"SQUEAKD_CREDENTIAL_DB"},
		Destination: out,
		Value:       *out,
	}
}

func RedisAddr(out *string) cli.Flag {
	return &cli.StringFlag{
		Name:        "redis-addr",
		Usage:       "Redis address for the stateful session store; empty keeps sessions in process memory",
		EnvVars:     []string{"SQUEAKD_REDIS_ADDR"},
		Destination: out,
		Value:       *out,
	}
}

func SessionTTL(out *time.Duration) cli.Flag {
	return &cli.DurationFlag{
		Name:        "session-ttl",
		Usage:       "How long a session stays valid",
		EnvVars:     []string{"SQUEAKD_SESSION_TTL"},
		Destination: out,
		Value:       *out,
	}
}

func CSRFTTL(out *time.Duration) cli.Flag {
	return &cli.DurationFlag{
		Name:        "csrf-ttl",
		Usage:       "How long a CSRF token stays valid",
		EnvVars:     []string{"SQUEAKD_CSRF_TTL"},
		Destination: out,
		Value:       *out,
	}
}

func KDFIterations(out *int) cli.Flag {
	if *out == 0 {
		*out = credential.DefaultIterations
	}
	return &cli.IntFlag{
		Name:        "kdf-iterations",
		Usage:       "PBKDF2 iteration count for password hashing",
		EnvVars:     []string{"SQUEAKD_KDF_ITERATIONS"},
		Destination: out,
		Value:       *out,
	}
}

func KDFKeyLength(out *int) cli.Flag {
	if *out == 0 {
		*out = credential.DefaultKeyLength
	}
	return &cli.IntFlag{
		Name:        "kdf-key-length",
		Usage:       "Derived key length in bytes for password hashing",
		EnvVars:     []string{"SQUEAKD_KDF_KEY_LENGTH"},
		Destination: out,
		Value:       *out,
	}
}

func SessionSecretEnvVar(out *string) cli.Flag {
	if len(*out) == 0 {
		*out = secrets.SessionSecretEnvVar
	}
	return &cli.StringFlag{
		Name:        "session-secret-envvar-name",
		Usage:       "Name of the environment variable holding the hex session secret. The secret itself must never be passed as an argument",
		Destination: out,
		Value:       *out,
	}
}

func CSRFKeyEnvVar(out *string) cli.Flag {
	if len(*out) == 0 {
		*out = secrets.CSRFKeyEnvVar
	}
	return &cli.StringFlag{
		Name:        "csrf-key-envvar-name",
		Usage:       "Name of the environment variable holding the base64 CSRF master key. The key itself must never be passed as an argument",
		Destination: out,
		Value:       *out,
	}
}

func InsecureCookies(out *bool) cli.Flag {
	return &cli.BoolFlag{
		Name:        "insecure-cookies",
		Usage:       "Drop the Secure cookie attribute, for plain-HTTP development only",
		Destination: out,
		Value:       *out,
	}
}

func BindClient(out *bool) cli.Flag {
	return &cli.BoolFlag{
		Name:        "bind-client",
		Usage:       "Fingerprint stateless tokens against client address and user agent instead of the username",
		Destination: out,
		Value:       *out,
	}
}
