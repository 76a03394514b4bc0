package handlers_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"

	"github.com/gin-gonic/gin"

	"voyago/backend/internal/api/middleware"
	"voyago/backend/internal/models"
	"voyago/backend/internal/utils"
)

// newTestRouter returns an engine whose requests are authenticated as user.
// A nil user leaves requests anonymous.
func newTestRouter(user *models.User) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	if user != nil {
		r.Use(func(c *gin.Context) {
			c.Set(middleware.ContextKeyUserID, user.ID)
			c.Set(middleware.ContextKeyUser, user)
			c.Next()
		})
	}
	return r
}

func testUser(roles ...models.Role) *models.User {
	return &models.User{Base: models.Base{ID: utils.NewSixID()}, Name: "Tess", Roles: roles}
}

func doJSON(r http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req, _ := http.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeBody(w *httptest.ResponseRecorder) map[string]interface{} {
	var m map[string]interface{}
	_ = json.Unmarshal(w.Body.Bytes(), &m)
	return m
}

// closeNotifyingRecorder lets gin's Stream run against a recorder.
type closeNotifyingRecorder struct {
	*httptest.ResponseRecorder
	closed chan bool
}

func newCloseNotifyingRecorder() *closeNotifyingRecorder {
	return &closeNotifyingRecorder{httptest.NewRecorder(), make(chan bool, 1)}
}

func (c *closeNotifyingRecorder) CloseNotify() <-chan bool {
	return c.closed
}
