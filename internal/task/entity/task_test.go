package entity

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDiffComparesContentFieldsOnly(t *testing.T) {
	two, three := int64(2), int64(3)
	base := &Task{ID: 1, Title: "A", Description: "d", Status: StatusOnHold, Priority: PriorityLow, AuthorID: 1, ExecutorID: &two}

	same := *base
	same.ID, same.AuthorID, same.ExecutorID = 9, 9, &three
	assert.Zero(t, base.Diff(&same).Len())

	cand := *base
	cand.Title, cand.Status = "B", StatusCompleted
	d := base.Diff(&cand)
	assert.Equal(t, "{status, title}", d.String())
	assert.True(t, d.Has(FieldTitle))
	assert.False(t, d.Only(FieldStatus))

	cand = *base
	cand.Status = StatusCompleted
	assert.True(t, base.Diff(&cand).Only(FieldStatus))
}

func TestSameExecutor(t *testing.T) {
	a, b, c := int64(1), int64(1), int64(2)
	assert.True(t, SameExecutor(nil, nil))
	assert.True(t, SameExecutor(&a, &b))
	assert.False(t, SameExecutor(&a, &c))
	assert.False(t, SameExecutor(&a, nil))
	assert.False(t, SameExecutor(nil, &c))
}

func TestParseEnums(t *testing.T) {
	s, err := ParseStatus(" completed ")
	assert.NoError(t, err)
	assert.Equal(t, StatusCompleted, s)
	_, err = ParseStatus("")
	assert.Error(t, err)

	p, err := ParsePriority("regular")
	assert.NoError(t, err)
	assert.Equal(t, PriorityRegular, p)
	_, err = ParsePriority("urgent")
	assert.Error(t, err)
}
