package passwd

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"

	"github.com/squeakhq/squeakd/credential"
	"github.com/squeakhq/squeakd/internal/cmdflags"
	"github.com/squeakhq/squeakd/internal/kdf"
	"github.com/urfave/cli/v2"
)

// Cmd generates a credential record offline, either printing it as JSON or
// inserting it straight into a credential database. Handy for seeding a
// deployment before the first signup.
func Cmd() *cli.Command {
	var (
		iterations   int
		keyLength    int
		credentialDB string
	)
	return &cli.Command{
		Name:      "passwd",
		Usage:     "Generate a password record for a user",
		ArgsUsage: "<username> <password>",
		Flags: []cli.Flag{
			cmdflags.KDFIterations(&iterations),
			cmdflags.KDFKeyLength(&keyLength),
			&cli.StringFlag{
				Name:        "credential-db",
				Aliases:     []string{"db"},
				Usage:       "Insert the record into this sqlite database instead of printing it",
				Destination: &credentialDB,
			},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() != 2 {
				return fmt.Errorf("expected <username> <password>, got %v arguments", c.NArg())
			}
			username, password := c.Args().Get(0), c.Args().Get(1)
			params := credential.Params{Iterations: iterations, KeyLength: keyLength, Gate: kdf.NewGate(1)}

			if credentialDB != "" {
				store, err := credential.OpenSqliteStore(c.Context, credentialDB)
				if err != nil {
					return err
				}
				defer store.Close()
				return params.CreateAccount(c.Context, store, username, password)
			}

			if !credential.AllowedUsername(username) {
				return credential.ErrInvalidUsername
			}
			if !credential.AllowedPassword(password, username) {
				return credential.ErrWeakPassword
			}
			salt, key, err := params.Hash(c.Context, password)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(map[string]interface{}{
				"username":   username,
				"salt":       hex.EncodeToString(salt),
				"iterations": iterations,
				"key":        hex.EncodeToString(key),
			})
		},
	}
}
