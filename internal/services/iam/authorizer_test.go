package iam

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TBMCG/RSS-feed/internal/auth"
)

func TestAuthorizer_Can(t *testing.T) {
	a, err := NewAuthorizer()
	require.NoError(t, err)

	tests := []struct {
		name  string
		roles []string
		obj   string
		act   string
		want  bool
	}{
		{"no roles", nil, auth.ObjectFeeds, auth.ActionRead, false},
		{"viewer reads feeds", []string{"viewer"}, auth.ObjectFeeds, auth.ActionRead, true},
		{"viewer cannot manage feeds", []string{"viewer"}, auth.ObjectFeeds, auth.ActionManage, false},
		{"editor manages feeds", []string{"editor"}, auth.ObjectFeeds, auth.ActionManage, true},
		{"editor inherits viewer", []string{"editor"}, auth.ObjectCategories, auth.ActionRead, true},
		{"editor cannot manage users", []string{"editor"}, auth.ObjectUsers, auth.ActionManage, false},
		{"admin manages users", []string{"admin"}, auth.ObjectUsers, auth.ActionManage, true},
		{"any role suffices", []string{"viewer", "admin"}, auth.ObjectCategories, auth.ActionManage, true},
		{"unknown role", []string{"bogus"}, auth.ObjectFeeds, auth.ActionRead, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := a.Can(tt.roles, tt.obj, tt.act)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAuthorizer_Capabilities(t *testing.T) {
	a, err := NewAuthorizer()
	require.NoError(t, err)

	caps, err := a.Capabilities([]string{"editor"})
	require.NoError(t, err)
	assert.Equal(t, Capabilities{CanManageFeeds: true}, caps)

	caps, err = a.Capabilities([]string{"admin"})
	require.NoError(t, err)
	assert.Equal(t, Capabilities{CanManageFeeds: true, CanManageCategories: true, CanManageUsers: true}, caps)
}
