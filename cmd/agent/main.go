package main

import (
	"context"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/fortressmdm/fortressmdm/agent"
	"github.com/fortressmdm/fortressmdm/types"
	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
)

const enrollRetryInterval = 10 * time.Second

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func main() {
	_ = godotenv.Load()

	serverURL := getEnv("MDM_SERVER_URL", "http://localhost:8000")
	enrollmentCode := os.Getenv("MDM_ENROLLMENT_CODE")
	if enrollmentCode == "" {
		log.Fatal("MDM_ENROLLMENT_CODE is required")
	}

	interval := agent.DefaultHeartbeatInterval
	if raw := os.Getenv("MDM_HEARTBEAT_INTERVAL_SEC"); raw != "" {
		secs, err := strconv.Atoi(raw)
		if err != nil || secs <= 0 {
			log.Fatalf("invalid MDM_HEARTBEAT_INTERVAL_SEC %q", raw)
		}
		interval = time.Duration(secs) * time.Second
	}

	hostname, _ := os.Hostname()
	info := types.DeviceInfo{
		DeviceName:   getEnv("MDM_DEVICE_NAME", hostname),
		IMEI:         os.Getenv("MDM_DEVICE_IMEI"),
		SerialNumber: os.Getenv("MDM_DEVICE_SERIAL"),
		DeviceType:   getEnv("MDM_DEVICE_TYPE", "android"),
		OSVersion:    os.Getenv("MDM_DEVICE_OS_VERSION"),
		AppVersion:   getEnv("MDM_AGENT_VERSION", "1.0.0"),
		BatteryLevel: 100,
		Location:     os.Getenv("MDM_DEVICE_LOCATION"),
		PushToken:    os.Getenv("MDM_PUSH_TOKEN"),
	}

	a := agent.New(serverURL)
	for {
		err := a.Enroll(enrollmentCode, info)
		if err == nil {
			break
		}
		log.WithError(err).Warnf("enrollment failed, retrying in %s", enrollRetryInterval)
		time.Sleep(enrollRetryInterval)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a.Run(ctx, interval)
}
