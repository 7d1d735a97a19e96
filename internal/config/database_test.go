package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitMongoDB_StartsOfflineWhenUnreachable(t *testing.T) {
	os.Clearenv()
	// Nothing listens on port 9; tight timeouts keep the failed ping fast
	os.Setenv("MONGODB_URI", "mongodb://127.0.0.1:9/?connectTimeoutMS=200&serverSelectionTimeoutMS=200")
	os.Setenv("MONGODB_DATABASE", "rupiya")
	defer os.Clearenv()

	require.NoError(t, LoadConfig())

	// Must return instead of exiting so the queue can accept work offline
	InitMongoDB()

	assert.NotNil(t, MongoClient)
	assert.NotNil(t, MongoDB)
	assert.Equal(t, "rupiya", MongoDB.Name())
}
