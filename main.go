package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"

	"github.com/fortressmdm/fortressmdm/db"
	"github.com/fortressmdm/fortressmdm/director"
	"github.com/fortressmdm/fortressmdm/log"
	"github.com/fortressmdm/fortressmdm/push"
	"github.com/fortressmdm/fortressmdm/utils"
	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/vmihailenco/taskq/v3"
	"github.com/vmihailenco/taskq/v3/redisq"
)

func main() {
	// .env is optional; flags and real env take precedence
	_ = godotenv.Load()

	var port string
	flag.StringVar(&port, "port", "8000", "Port number to run fortressmdm on.")
	flag.Bool("debug", false, "Enable debug output")
	flag.String("loglevel", "warn", "Log level (debug, info, warn, error)")
	flag.String("db-type", "sqlite", "Database backend (postgres or sqlite)")
	flag.String("db-connection-string", "fortressmdm.db", "Database connection string (DSN for postgres, file path for sqlite)")
	flag.String("enrollment-code", "", "Shared secret devices present to enroll")
	flag.String("emergency-password", "", "Admin password guarding emergency lock/wipe")
	flag.String("min-agent-version", "", "Reject enrollments from agents older than this version")
	flag.String("basic-auth-user", "fortressmdm", "Username for the console API")
	flag.String("basic-auth-password", "", "Password for the console API")
	flag.String("redis-host", "", "Redis host for the push queue and token cache (empty disables both)")
	flag.String("redis-port", "6379", "Redis port")
	flag.String("redis-password", "", "Redis password")
	flag.String("push-gateway-url", "", "FCM-style gateway used to wake devices (empty disables push)")
	flag.String("push-gateway-key", "", "API key for the push gateway")
	flag.Parse()

	if utils.EnrollmentCode() == "" {
		log.Fatal("Enrollment code missing. Exiting.")
	}
	if utils.GetBasicAuthPassword() == "" {
		log.Fatal("Basic auth password missing. Exiting.")
	}

	gdb, err := db.Open()
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	if err := db.AutoMigrate(gdb); err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}

	d := director.New(gdb)

	ctx := context.Background()
	if utils.RedisHost() != "" {
		rdb := director.RedisClient()
		d.WithTokenCache(rdb)

		if utils.PushGatewayURL() != "" {
			factory := redisq.NewFactory()
			queue := factory.RegisterQueue(&taskq.QueueOptions{
				Name:  "fortressmdm-push",
				Redis: rdb,
			})
			pusher := push.NewClient(utils.PushGatewayURL(), utils.PushGatewayKey())
			d.WithPushQueue(queue, pusher)
			go d.ProcessPushQueue(ctx)
		}
	}

	d.Metrics()
	go d.StaleDeviceSweeper()

	r := mux.NewRouter()

	// console surface, basic auth
	console := r.PathPrefix("/api").Subrouter()
	console.Use(utils.BasicAuth)
	console.HandleFunc("/devices", d.DevicesHandler).Methods("GET")
	console.HandleFunc("/devices", d.PostDeviceHandler).Methods("POST")
	// registered before the {id} routes so "bulk" is never parsed as an id
	console.HandleFunc("/devices/bulk/controls", d.BulkControlHandler).Methods("POST")
	console.HandleFunc("/devices/{id}", d.DeviceHandler).Methods("GET")
	console.HandleFunc("/devices/{id}", d.PutDeviceHandler).Methods("PUT")
	console.HandleFunc("/devices/{id}", d.DeleteDeviceHandler).Methods("DELETE")
	console.HandleFunc("/devices/{id}/commands", d.PostCommandHandler).Methods("POST")
	console.HandleFunc("/devices/{id}/commands", d.DeviceCommandsHandler).Methods("GET")
	console.HandleFunc("/devices/{id}/logs", d.DeviceLogsHandler).Methods("GET")
	console.HandleFunc("/devices/{id}/controls", d.DeviceControlHandler).Methods("POST")
	console.HandleFunc("/devices/{id}/kiosk", d.KioskHandler).Methods("POST")
	console.HandleFunc("/devices/{id}/emergency", d.EmergencyHandler).Methods("POST")
	console.HandleFunc("/stats", d.StatsHandler).Methods("GET")
	console.HandleFunc("/policies", d.PoliciesHandler).Methods("GET")
	console.HandleFunc("/policies", d.PostPolicyHandler).Methods("POST")
	console.HandleFunc("/policies/{id}", d.PutPolicyHandler).Methods("PUT")
	console.HandleFunc("/policies/{id}", d.DeletePolicyHandler).Methods("DELETE")
	console.HandleFunc("/chat", d.ChatHistoryHandler).Methods("GET")
	console.HandleFunc("/chat", d.ChatHandler).Methods("POST")

	// device surface: enrollment code, then per-device bearer token
	r.HandleFunc("/api/enroll", d.EnrollHandler).Methods("POST")
	r.HandleFunc("/api/device/status", d.DeviceStatusHandler).Methods("POST")
	r.HandleFunc("/api/device/commands", d.DeviceCommandPollHandler).Methods("GET")
	r.HandleFunc("/api/device/command/{id}/result", d.DeviceCommandResultHandler).Methods("POST")

	r.Handle("/metrics", promhttp.Handler()).Methods("GET")
	r.HandleFunc("/healthcheck", director.HealthCheck).Methods("GET")

	fmt.Println("fortressmdm is running, hold onto your butts...")
	log.Fatal(http.ListenAndServe(":"+port, r))
}
