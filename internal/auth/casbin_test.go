package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitEnforcer_RolePolicy(t *testing.T) {
	enforcer, err := InitEnforcer()
	require.NoError(t, err)

	tests := []struct {
		role   string
		obj    string
		act    string
		expect bool
	}{
		{RoleViewer, ObjectFeeds, ActionRead, true},
		{RoleViewer, ObjectFeeds, ActionManage, false},
		{RoleViewer, ObjectCategories, ActionRead, true},
		{RoleEditor, ObjectFeeds, ActionManage, true},
		{RoleEditor, ObjectFeeds, ActionRead, true},
		{RoleEditor, ObjectCategories, ActionManage, false},
		{RoleEditor, ObjectUsers, ActionManage, false},
		{RoleAdmin, ObjectFeeds, ActionManage, true},
		{RoleAdmin, ObjectCategories, ActionManage, true},
		{RoleAdmin, ObjectUsers, ActionManage, true},
		{"bogus-role", ObjectFeeds, ActionRead, false},
	}

	for _, tt := range tests {
		t.Run(tt.role+"/"+tt.obj+"/"+tt.act, func(t *testing.T) {
			ok, err := enforcer.Enforce(RoleID(tt.role), tt.obj, tt.act)
			require.NoError(t, err)
			assert.Equal(t, tt.expect, ok)
		})
	}
}

func TestIsKnownRole(t *testing.T) {
	assert.True(t, IsKnownRole("admin"))
	assert.True(t, IsKnownRole(" Editor "))
	assert.False(t, IsKnownRole("bogus-role"))
	assert.False(t, IsKnownRole(""))
}
