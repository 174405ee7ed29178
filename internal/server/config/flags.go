package config

import (
	"flag"
	"os"
	"time"

	"github.com/pulseops/pulseguardian/internal/flagx"
)

// parseFlags populates selected server Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string   HTTP bind address (e.g., ":8080")
//	-d string   PostgreSQL DSN
//	-s string   session HMAC secret key
//	-t int      session validity, minutes
//	-m string   broker management API URL (e.g., "http://localhost:15672")
//	-u string   broker management user
//	-p string   broker management password
//	-v string   broker vhost
//	-f string   fake account email (dev-only identity shortcut)
//
// The identity-provider and reserved-username settings have no short
// flags; set them through the JSON config file.
//
// Notes:
//   - The function first filters os.Args to only the flags it recognizes
//     using flagx.FilterArgs, avoiding collisions with other components.
//   - The session validity flag is accepted as an integer in minutes and
//     converted to a time.Duration.
func parseFlags(config *Config) {
	// Filter args to include only the flags handled here.
	args := flagx.FilterArgs(os.Args[1:], []string{"-a", "-d", "-s", "-t", "-m", "-u", "-p", "-v", "-f"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.EndpointAddr, "a", config.EndpointAddr, "address and port to run server")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.SecretKey, "s", config.SecretKey, "secret key")

	sessionValidityDuration := fs.Int("t", int(config.SessionValidityDuration.Minutes()), "session_validity_duration (in minutes)")

	fs.StringVar(&config.RabbitManagementURL, "m", config.RabbitManagementURL, "broker management API URL")
	fs.StringVar(&config.RabbitUser, "u", config.RabbitUser, "broker management user")
	fs.StringVar(&config.RabbitPassword, "p", config.RabbitPassword, "broker management password")
	fs.StringVar(&config.RabbitVhost, "v", config.RabbitVhost, "broker vhost")
	fs.StringVar(&config.FakeAccount, "f", config.FakeAccount, "fake account email (dev only)")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	config.SessionValidityDuration = time.Duration(*sessionValidityDuration) * time.Minute
}
