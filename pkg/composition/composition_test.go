package composition

import (
	"encoding/json"
	"math/rand"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ekaya-inc/assembly-factory/pkg/apperrors"
	"github.com/ekaya-inc/assembly-factory/pkg/models"
)

func TestComposition_Add_AppendsWithNextSortOrder(t *testing.T) {
	c := New()

	first, added := c.Add("scoring", nil)
	require.True(t, added)
	second, added := c.Add("schedule", json.RawMessage(`{"title":"Week"}`))
	require.True(t, added)

	assert.Equal(t, 0, first.SortOrder)
	assert.Equal(t, 1, second.SortOrder)
	assert.NotEqual(t, first.InstanceID, second.InstanceID)
	assert.JSONEq(t, `{"title":"Week"}`, string(second.Config))
}

func TestComposition_Add_SamePartCodeIsIdempotent(t *testing.T) {
	c := New()
	first, _ := c.Add("scoring", nil)

	again, added := c.Add("scoring", nil)

	assert.False(t, added)
	assert.Equal(t, first.InstanceID, again.InstanceID)
	assert.Equal(t, 1, c.Len())
}

func TestComposition_Remove_Renumbers(t *testing.T) {
	c := New()
	a, _ := c.Add("a", nil)
	b, _ := c.Add("b", nil)
	d, _ := c.Add("d", nil)

	require.NoError(t, c.Remove(b.InstanceID))

	got := c.Instances()
	require.Len(t, got, 2)
	assert.Equal(t, a.InstanceID, got[0].InstanceID)
	assert.Equal(t, 0, got[0].SortOrder)
	assert.Equal(t, d.InstanceID, got[1].InstanceID)
	assert.Equal(t, 1, got[1].SortOrder)
}

func TestComposition_Remove_UnknownID(t *testing.T) {
	c := New()
	c.Add("a", nil)

	err := c.Remove(uuid.New())

	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	assert.Equal(t, 1, c.Len())
}

func TestComposition_Reorder_AppliesPermutation(t *testing.T) {
	c := New()
	a, _ := c.Add("a", nil)
	b, _ := c.Add("b", nil)
	d, _ := c.Add("d", nil)

	require.NoError(t, c.Reorder([]uuid.UUID{d.InstanceID, a.InstanceID, b.InstanceID}))

	assert.Equal(t, []uuid.UUID{d.InstanceID, a.InstanceID, b.InstanceID}, c.IDs())
	require.NoError(t, c.Check())
}

func TestComposition_Reorder_RejectsNonPermutationsUnchanged(t *testing.T) {
	c := New()
	a, _ := c.Add("a", nil)
	b, _ := c.Add("b", json.RawMessage(`{"x":1}`))

	before, err := json.Marshal(c.Instances())
	require.NoError(t, err)

	cases := map[string][]uuid.UUID{
		"too short": {a.InstanceID},
		"too long":  {a.InstanceID, b.InstanceID, uuid.New()},
		"foreign":   {a.InstanceID, uuid.New()},
		"duplicate": {a.InstanceID, a.InstanceID},
		"empty":     {},
	}
	for name, ids := range cases {
		t.Run(name, func(t *testing.T) {
			err := c.Reorder(ids)
			assert.ErrorIs(t, err, apperrors.ErrInvalidPermutation)

			after, err := json.Marshal(c.Instances())
			require.NoError(t, err)
			assert.Equal(t, string(before), string(after))
		})
	}
}

func TestComposition_FromInstances_SortsAndDensifies(t *testing.T) {
	x, y, z := uuid.New(), uuid.New(), uuid.New()
	c, err := FromInstances([]models.PartInstance{
		{InstanceID: x, PartCode: "x", SortOrder: 7},
		{InstanceID: y, PartCode: "y", SortOrder: 2},
		{InstanceID: z, PartCode: "z", SortOrder: 4},
	})
	require.NoError(t, err)

	assert.Equal(t, []uuid.UUID{y, z, x}, c.IDs())
	require.NoError(t, c.Check())
}

func TestComposition_FromInstances_RejectsDuplicates(t *testing.T) {
	id := uuid.New()
	_, err := FromInstances([]models.PartInstance{
		{InstanceID: id, PartCode: "x"},
		{InstanceID: id, PartCode: "y"},
	})
	assert.Error(t, err)

	_, err = FromInstances([]models.PartInstance{
		{InstanceID: uuid.New(), PartCode: "x"},
		{InstanceID: uuid.New(), PartCode: "x"},
	})
	assert.ErrorIs(t, err, apperrors.ErrDuplicatePart)
}

func TestComposition_Instances_ReturnsCopies(t *testing.T) {
	c := New()
	inst, _ := c.Add("a", json.RawMessage(`{"k":"v"}`))

	got := c.Instances()
	got[0].SortOrder = 42
	got[0].Config[2] = 'X'

	stored, ok := c.Get(inst.InstanceID)
	require.True(t, ok)
	assert.Equal(t, 0, stored.SortOrder)
	assert.JSONEq(t, `{"k":"v"}`, string(stored.Config))
}

// Random add/remove/reorder sequences must keep sort orders dense after
// every step.
func TestComposition_DensityHoldsUnderRandomOperations(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	codes := []string{"scoring", "schedule", "roster", "payments", "fitness", "news"}
	c := New()

	for step := 0; step < 2000; step++ {
		switch rng.Intn(4) {
		case 0, 1:
			c.Add(codes[rng.Intn(len(codes))], nil)
		case 2:
			ids := c.IDs()
			if len(ids) > 0 {
				require.NoError(t, c.Remove(ids[rng.Intn(len(ids))]))
			} else {
				assert.Error(t, c.Remove(uuid.New()))
			}
		case 3:
			ids := c.IDs()
			rng.Shuffle(len(ids), func(i, j int) { ids[i], ids[j] = ids[j], ids[i] })
			if rng.Intn(3) == 0 && len(ids) > 0 {
				ids = ids[1:]
				assert.Error(t, c.Reorder(ids))
			} else {
				require.NoError(t, c.Reorder(ids))
				assert.Equal(t, ids, c.IDs())
			}
		}
		require.NoError(t, c.Check(), "step %d", step)
		assert.LessOrEqual(t, c.Len(), len(codes))
	}
}

func TestCheckOrder_DetectsGapsAndDuplicates(t *testing.T) {
	id := uuid.New()
	assert.Error(t, CheckOrder([]models.PartInstance{{InstanceID: uuid.New(), SortOrder: 1}}))
	assert.Error(t, CheckOrder([]models.PartInstance{
		{InstanceID: uuid.New(), SortOrder: 0},
		{InstanceID: uuid.New(), SortOrder: 0},
	}))
	assert.Error(t, CheckOrder([]models.PartInstance{
		{InstanceID: id, SortOrder: 0},
		{InstanceID: id, SortOrder: 1},
	}))
	assert.NoError(t, CheckOrder(nil))
}
