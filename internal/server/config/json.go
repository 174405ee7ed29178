package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/pulseops/pulseguardian/internal/flagx"
)

// JsonConfig defines a configuration structure tailored for JSON
// unmarshalling. It is an intermediate DTO used only for reading JSON
// configuration files; after unmarshalling, its fields are copied into
// the runtime Config struct.
type JsonConfig struct {
	EndpointAddr           string `json:"endpoint_addr"`
	DatabaseDSN            string `json:"database_dsn"`
	SecretKey              string `json:"secret_key"`
	SessionValidityMinutes int    `json:"session_validity_minutes"`
	RabbitManagementURL    string `json:"rabbit_management_url"`
	RabbitUser             string `json:"rabbit_user"`
	RabbitPassword         string `json:"rabbit_password"`
	RabbitVhost            string `json:"rabbit_vhost"`
	Auth0Domain            string `json:"auth0_domain"`
	Auth0ClientID          string `json:"auth0_client_id"`
	Auth0ClientSecret      string `json:"auth0_client_secret"`
	Auth0CallbackURL       string `json:"auth0_callback_url"`
	FakeAccount            string `json:"fake_account"`
	ReservedUsersRegex     string `json:"reserved_users_regex"`
	ReservedUsersMessage   string `json:"reserved_users_message"`
}

// parseJson loads configuration values from a JSON file into the
// provided Config instance.
//
// The JSON file path comes from the -c or -config command-line flags;
// if neither is set, no JSON file is loaded. If the file cannot be read
// or contains invalid JSON, the function panics.
//
// The caller is expected to merge these values with defaults and
// command-line flags as part of the full configuration process.
func parseJson(config *Config) {

	// try flags
	jsonConfigFile := flagx.JsonConfigFlags()

	// nothing to load
	if jsonConfigFile == "" {
		return
	}

	c := &JsonConfig{}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	err = json.Unmarshal(file, c)
	if err != nil {
		panic(err)
	}

	config.EndpointAddr = c.EndpointAddr
	config.DatabaseDSN = c.DatabaseDSN
	config.SecretKey = c.SecretKey
	config.SessionValidityDuration = time.Duration(c.SessionValidityMinutes) * time.Minute
	config.RabbitManagementURL = c.RabbitManagementURL
	config.RabbitUser = c.RabbitUser
	config.RabbitPassword = c.RabbitPassword
	config.RabbitVhost = c.RabbitVhost
	config.Auth0Domain = c.Auth0Domain
	config.Auth0ClientID = c.Auth0ClientID
	config.Auth0ClientSecret = c.Auth0ClientSecret
	config.Auth0CallbackURL = c.Auth0CallbackURL
	config.FakeAccount = c.FakeAccount
	config.ReservedUsersRegex = c.ReservedUsersRegex
	config.ReservedUsersMessage = c.ReservedUsersMessage
}
