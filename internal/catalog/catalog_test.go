package catalog

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tessera-pm/tessera/internal/shared"
)

func TestParseCode(t *testing.T) {
	code, err := ParseCode("  Project.Read ")
	require.NoError(t, err)
	require.Equal(t, Code("project.read"), code)

	for _, raw := range []string{"", "project", ".read", "project.", "noseperator"} {
		_, err := ParseCode(raw)
		require.ErrorIs(t, err, shared.ErrUnknownPermission, "raw=%q", raw)
	}
}

func TestRegisterRejectsDuplicates(t *testing.T) {
	c := New()
	require.NoError(t, c.Register("task.create"))

	err := c.Register("task.create")
	require.ErrorIs(t, err, shared.ErrDuplicatePermission)

	// The original registration survives the failed duplicate.
	perm, err := c.Lookup("task.create")
	require.NoError(t, err)
	require.Equal(t, "task", perm.Module)
	require.Equal(t, "create", perm.Action)
}

func TestLookupUnknownCode(t *testing.T) {
	c := New()
	_, err := c.Lookup("ghost.permission")
	require.ErrorIs(t, err, shared.ErrUnknownPermission)
}

func TestDefaultCatalog(t *testing.T) {
	c := Default()
	for _, code := range []Code{CodeRoleManage, CodeAssignmentManage, CodeUserManage, CodeAuditView, "project.read", "change.approve"} {
		_, err := c.Lookup(code)
		require.NoError(t, err, "code=%s", code)
	}

	all := c.All()
	require.Len(t, all, len(defaultCodes))
	for i := 1; i < len(all); i++ {
		require.Less(t, all[i-1].Code, all[i].Code)
	}
}

func TestLookupErrorWrapsCode(t *testing.T) {
	c := Default()
	_, err := c.Lookup("finance.close")
	require.Error(t, err)
	require.True(t, errors.Is(err, shared.ErrUnknownPermission))
	require.Contains(t, err.Error(), "finance.close")
}
