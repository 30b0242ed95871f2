package tenant_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/xraph/press/tenant"
)

func TestValidate(t *testing.T) {
	assert.ErrorIs(t, tenant.Context{}.Validate(), tenant.ErrMissing)
	assert.ErrorIs(t, tenant.New("  ", "u1").Validate(), tenant.ErrMissing)
	assert.NoError(t, tenant.New("7", "").Validate())
}

func TestActor(t *testing.T) {
	assert.Equal(t, tenant.System, tenant.New("7", "").Actor())
	assert.Equal(t, "editor-1", tenant.New("7", "editor-1").Actor())
	assert.Equal(t, tenant.System, tenant.ForSweep("7").Actor())
}
