package utils

import (
	"flag"
	"os"
	"strings"
)

// Config is read through flag.Lookup so any package can reach it without a
// settings struct being threaded around. Every getter falls back to an
// environment variable so tests (which never call flag.Parse on the server's
// flag set) and the agent binary still resolve sane values.

func lookupString(name, envKey string) string {
	if f := flag.Lookup(name); f != nil {
		if v, ok := f.Value.(flag.Getter).Get().(string); ok && v != "" {
			return v
		}
	}
	return os.Getenv(envKey)
}

func lookupBool(name, envKey string) bool {
	if f := flag.Lookup(name); f != nil {
		if v, ok := f.Value.(flag.Getter).Get().(bool); ok {
			return v
		}
	}
	return os.Getenv(envKey) == "true"
}

func DebugMode() bool {
	return lookupBool("debug", "MDM_DEBUG")
}

func LogLevel() string {
	level := lookupString("loglevel", "MDM_LOG_LEVEL")
	if level == "" {
		level = "warn"
	}
	return strings.ToLower(level)
}

func DatabaseType() string {
	t := lookupString("db-type", "MDM_DB_TYPE")
	if t == "" {
		t = "sqlite"
	}
	return t
}

func ConnectionString() string {
	dsn := lookupString("db-connection-string", "MDM_DB_CONNECTION_STRING")
	if dsn == "" {
		dsn = "fortressmdm.db"
	}
	return dsn
}

// EnrollmentCode is the shared secret a device presents to enroll.
func EnrollmentCode() string {
	return lookupString("enrollment-code", "MDM_ENROLLMENT_CODE")
}

// EmergencyPassword guards the emergency lock/wipe endpoint.
func EmergencyPassword() string {
	return lookupString("emergency-password", "ADMIN_EMERGENCY_PASSWORD")
}

// MinAgentVersion rejects enrollments from agents older than this version.
// Empty disables the gate.
func MinAgentVersion() string {
	return lookupString("min-agent-version", "MDM_MIN_AGENT_VERSION")
}

func GetBasicAuthUser() string {
	user := lookupString("basic-auth-user", "MDM_USERNAME")
	if user == "" {
		user = "fortressmdm"
	}
	return user
}

func GetBasicAuthPassword() string {
	return lookupString("basic-auth-password", "MDM_PASSWORD")
}

func RedisHost() string {
	return lookupString("redis-host", "MDM_REDIS_HOST")
}

func RedisPort() string {
	port := lookupString("redis-port", "MDM_REDIS_PORT")
	if port == "" {
		port = "6379"
	}
	return port
}

func RedisPassword() string {
	return lookupString("redis-password", "MDM_REDIS_PASSWORD")
}

// PushGatewayURL is the FCM-style gateway used to wake devices when a new
// command is queued. Empty disables the push path.
func PushGatewayURL() string {
	return strings.TrimRight(lookupString("push-gateway-url", "MDM_PUSH_GATEWAY_URL"), "/")
}

func PushGatewayKey() string {
	return lookupString("push-gateway-key", "MDM_PUSH_GATEWAY_KEY")
}
