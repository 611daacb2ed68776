package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStringList_ScanValue(t *testing.T) {
	t.Run("nil list stores empty array", func(t *testing.T) {
		v, err := StringList(nil).Value()
		require.NoError(t, err)
		assert.Equal(t, "[]", v)
	})

	t.Run("scan from bytes and string", func(t *testing.T) {
		var l StringList
		require.NoError(t, l.Scan([]byte(`["a@x.com","b@x.com"]`)))
		assert.Equal(t, StringList{"a@x.com", "b@x.com"}, l)

		require.NoError(t, l.Scan(`["c@x.com"]`))
		assert.Equal(t, StringList{"c@x.com"}, l)
	})

	t.Run("scan nil yields empty", func(t *testing.T) {
		l := StringList{"stale"}
		require.NoError(t, l.Scan(nil))
		assert.Empty(t, l)
	})

	t.Run("unsupported type", func(t *testing.T) {
		var l StringList
		assert.Error(t, l.Scan(42))
	})
}

func TestMetadata_ScanValue(t *testing.T) {
	m := Metadata{"oldStatus": "todo", "newStatus": "in_progress"}
	v, err := m.Value()
	require.NoError(t, err)

	var out Metadata
	require.NoError(t, out.Scan(v))
	assert.Equal(t, m, out)

	v, err = Metadata(nil).Value()
	require.NoError(t, err)
	assert.Nil(t, v)
}

func TestRole(t *testing.T) {
	assert.True(t, RoleOwner.Elevated())
	assert.True(t, RoleAdmin.Elevated())
	assert.False(t, RoleMember.Elevated())
	assert.False(t, Role("viewer").Valid())
}

func TestTask_Overdue(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	assert.True(t, (&Task{Status: TaskStatusTodo, DueDate: &past}).Overdue(now))
	assert.False(t, (&Task{Status: TaskStatusDone, DueDate: &past}).Overdue(now))
	assert.False(t, (&Task{Status: TaskStatusTodo, DueDate: &future}).Overdue(now))
	assert.False(t, (&Task{Status: TaskStatusTodo}).Overdue(now))
}

func TestSubscriptionPlans(t *testing.T) {
	plans := SubscriptionPlans()
	require.Len(t, plans, 3)

	p, ok := FindPlan("managed_api")
	require.True(t, ok)
	assert.True(t, p.Popular)
	assert.Equal(t, float64(9), p.Price)

	_, ok = FindPlan("enterprise")
	assert.False(t, ok)
}

func TestUser_DisplayName(t *testing.T) {
	assert.Equal(t, "Ada", (&User{FirstName: "Ada", Email: "ada@x.com"}).DisplayName())
	assert.Equal(t, "ada@x.com", (&User{Email: "ada@x.com"}).DisplayName())
}
