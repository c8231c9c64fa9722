package testutil

import (
	"net"
	"net/url"
	"os"
)

// DatabaseConfig points integration tests at an existing PostgreSQL server
// instead of a container.
type DatabaseConfig struct {
	// URL is an admin connection; each test creates its own database there.
	URL string
}

// GetDatabaseConfig reads the server from the environment, first
// SCHEMAWARD_TEST_DATABASE_URL, then DATABASE_URL, then DATABASE_HOST and
// its companions. An empty config means start a container.
func GetDatabaseConfig() DatabaseConfig {
	for _, key := range []string{"SCHEMAWARD_TEST_DATABASE_URL", "DATABASE_URL"} {
		if dsn := os.Getenv(key); dsn != "" {
			return DatabaseConfig{URL: dsn}
		}
	}

	host := os.Getenv("DATABASE_HOST")
	if host == "" {
		return DatabaseConfig{}
	}

	u := &url.URL{
		Scheme:   "postgres",
		Host:     net.JoinHostPort(host, getEnv("DATABASE_PORT", "5432")),
		Path:     "/" + getEnv("DATABASE_NAME", "postgres"),
		RawQuery: url.Values{"sslmode": {getEnv("DATABASE_SSLMODE", "prefer")}}.Encode(),
	}
	user := getEnv("DATABASE_USER", "postgres")
	if password := os.Getenv("DATABASE_PASSWORD"); password != "" {
		u.User = url.UserPassword(user, password)
	} else {
		u.User = url.User(user)
	}
	return DatabaseConfig{URL: u.String()}
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}
