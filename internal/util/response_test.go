package util

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestHandleServiceError(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name string
		err  error
		want int
	}{
		{"未找到映射404", fmt.Errorf("%w: section 7", ErrNotFound), http.StatusNotFound},
		{"校验失败映射400", fmt.Errorf("%w: duplicate id", ErrValidation), http.StatusBadRequest},
		{"并发冲突映射409", fmt.Errorf("%w: concurrent reorder", ErrConflict), http.StatusConflict},
		{"未识别错误映射500", fmt.Errorf("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			HandleServiceError(c, tt.err)
			assert.Equal(t, tt.want, w.Code)
		})
	}
}
