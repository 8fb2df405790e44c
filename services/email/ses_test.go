package emailsvc

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	testutil "github.com/skedutech/portal/tests"
)

func TestNewSESService(t *testing.T) {
	conf := testutil.NewConfig()
	conf.AwsRegion = "ap-south-1"

	svc, err := NewSESService(context.Background(), conf, testutil.NopLogger{})
	require.NoError(t, err)
	require.NotNil(t, svc.client)

	// the sender is the RFC 5322 form of the configured default address
	assert.Equal(t, `"SK Edutech" <noreply@skedutech.test>`, svc.from)
	assert.Equal(t, "[SK Edutech] ", svc.subjPrefix)
}
