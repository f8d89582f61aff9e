package order

import (
	"os"
	"testing"

	"techwire-be/internal/logger"
)

func TestMain(m *testing.M) {
	logger.Init("test", "error")
	os.Exit(m.Run())
}
