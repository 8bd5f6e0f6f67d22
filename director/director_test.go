package director

import (
	"fmt"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fortressmdm/fortressmdm/db"
	"github.com/fortressmdm/fortressmdm/types"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// testDirector returns a Director backed by an isolated in-memory store.
func testDirector(t *testing.T) *Director {
	t.Helper()

	gdb, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:                                   logger.Default.LogMode(logger.Silent),
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	require.NoError(t, err)

	// the in-memory database vanishes when its single connection closes
	sqlDB, err := gdb.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(gdb))
	return New(gdb)
}

var imeiSeq uint64

// nextIMEI yields a distinct well-formed IMEI per seeded device.
func nextIMEI() string {
	return fmt.Sprintf("35693803%07d", atomic.AddUint64(&imeiSeq, 1))
}

func seedDevice(t *testing.T, d *Director, name string) types.Device {
	t.Helper()

	now := time.Now().UTC()
	device := types.Device{
		Name:         name,
		IMEI:         nextIMEI(),
		SerialNumber: "SN-" + name,
		DeviceType:   "android",
		Status:       types.DeviceStatusOnline,
		BatteryLevel: 80,
		LastSeen:     now,
		APIToken:     uuid.NewString(),
		EnrolledAt:   now,
	}
	require.NoError(t, d.db.Create(&device).Error)
	return device
}

func muxVars(req *http.Request, id uint) *http.Request {
	return mux.SetURLVars(req, map[string]string{"id": fmt.Sprint(id)})
}

func deviceLogs(t *testing.T, d *Director, deviceID uint) []types.DeviceLog {
	t.Helper()

	logs, err := d.GetDeviceLogs(deviceID)
	require.NoError(t, err)
	return logs
}
