package director

import (
	"net/http"
)

type health struct {
	Status string `json:"status"`
}

func HealthCheck(w http.ResponseWriter, r *http.Request) {
	jsonResponse(w, http.StatusOK, health{Status: "UP"})
}
