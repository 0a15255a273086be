package handlers

import (
	"net/http/httptest"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
)

// RecordWorkflowError runs writeWorkflowError against a throwaway context.
func RecordWorkflowError(err error) *httptest.ResponseRecorder {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	l, _ := test.NewNullLogger()
	writeWorkflowError(c, logrus.NewEntry(l), err)
	return w
}

var (
	NormalizeLinkCode = normalizeLinkCode
	FormatDigest      = formatDigest
)
