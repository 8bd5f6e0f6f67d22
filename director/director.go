package director

import (
	"encoding/json"
	"net/http"

	"github.com/fortressmdm/fortressmdm/push"
	"github.com/go-redis/redis/v8"
	"github.com/pkg/errors"
	"github.com/vmihailenco/taskq/v3"
	"gorm.io/gorm"
)

// Director owns the command/heartbeat lifecycle. The store is injected so
// tests can run against an isolated in-memory database; nothing in this
// package reaches a process-wide handle.
type Director struct {
	db         *gorm.DB
	pushQueue  taskq.Queue
	pushTask   *taskq.Task
	pusher     *push.Client
	tokenCache *redis.Client
}

func New(gdb *gorm.DB) *Director {
	return &Director{db: gdb}
}

// WithPushQueue enables best-effort wake-up pings through the redis-backed
// queue. Must be called at most once per process: the task name is global.
func (d *Director) WithPushQueue(queue taskq.Queue, pusher *push.Client) *Director {
	d.pushQueue = queue
	d.pusher = pusher
	d.pushTask = taskq.RegisterTask(&taskq.TaskOptions{
		Name: "push",
		Handler: func(pushToken string, commandID uint64) error {
			err := pusher.Wake(pushToken, commandID)
			if err != nil {
				ErrorLogger(LogHolder{Message: err.Error()})
			}
			return nil
		},
	})
	return d
}

// WithTokenCache caches bearer-token lookups in redis.
func (d *Director) WithTokenCache(rdb *redis.Client) *Director {
	d.tokenCache = rdb
	return d
}

func jsonResponse(w http.ResponseWriter, status int, v interface{}) {
	output, err := json.MarshalIndent(v, "", "    ")
	if err != nil {
		ErrorLogger(LogHolder{Message: err.Error()})
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, err = w.Write(output)
	if err != nil {
		ErrorLogger(LogHolder{Message: err.Error()})
	}
}

func errorResponse(w http.ResponseWriter, status int, msg string) {
	jsonResponse(w, status, map[string]string{"message": msg})
}

// decodeJSON rejects payloads whose shape differs from the expected struct.
func decodeJSON(r *http.Request, v interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return errors.Wrap(err, "decode request body")
	}
	return nil
}

func isNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
