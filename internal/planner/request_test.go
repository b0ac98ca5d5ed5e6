package planner

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveAppliesDefaults(t *testing.T) {
	in, err := Request{}.Resolve()
	require.NoError(t, err)

	assert.Equal(t, DefaultAnchors(), in.AnchorTimes)
	assert.Equal(t, ChoreList{"Set table", "Tidy room"}, in.Chores)
}

func TestResolveKeepsExplicitEmptyChoreList(t *testing.T) {
	in, err := Request{Chores: Present([]string{})}.Resolve()
	require.NoError(t, err)

	require.NotNil(t, in.Chores)
	assert.Empty(t, in.Chores)
}

func TestResolveOverridesIndividualFields(t *testing.T) {
	in, err := Request{
		SchoolStart: Present("09:15"),
		Chores:      Present([]string{"Walk dog"}),
	}.Resolve()
	require.NoError(t, err)

	assert.Equal(t, MustTimeOfDay("07:00"), in.WakeUp)
	assert.Equal(t, MustTimeOfDay("09:15"), in.SchoolStart)
	assert.Equal(t, MustTimeOfDay("19:00"), in.Dinner)
	assert.Equal(t, ChoreList{"Walk dog"}, in.Chores)
}

func TestResolveReportsOffendingField(t *testing.T) {
	_, err := Request{WakeUp: Present("06:30"), Dinner: Present("25:00")}.Resolve()
	require.Error(t, err)

	var tfErr *InvalidTimeFormatError
	require.True(t, errors.As(err, &tfErr))
	assert.Equal(t, "dinner", tfErr.Field)
	assert.Equal(t, "25:00", tfErr.Value)
	assert.True(t, errors.Is(err, ErrInvalidTimeFormat))
}

func TestResolveFailsOnFirstInvalidField(t *testing.T) {
	_, err := Request{WakeUp: Present("7:5"), SchoolStart: Present("99:99")}.Resolve()

	var tfErr *InvalidTimeFormatError
	require.True(t, errors.As(err, &tfErr))
	assert.Equal(t, "wake_up", tfErr.Field)
}

func TestResolveCopiesChores(t *testing.T) {
	chores := []string{"a", "b"}
	in, err := Request{Chores: Present(chores)}.Resolve()
	require.NoError(t, err)

	chores[0] = "mutated"
	assert.Equal(t, "a", in.Chores[0])
}

func TestRequestJSONDistinguishesNullAndMissing(t *testing.T) {
	var req Request
	require.NoError(t, json.Unmarshal([]byte(`{"wake_up":"06:45","chores":null}`), &req))

	wake, ok := req.WakeUp.Get()
	assert.True(t, ok)
	assert.Equal(t, "06:45", wake)
	chores, ok := req.Chores.Get()
	assert.True(t, ok, "null chores is an explicit empty list")
	assert.Empty(t, chores)
	assert.False(t, req.Dinner.IsPresent())

	var missing Request
	require.NoError(t, json.Unmarshal([]byte(`{"dinner":null}`), &missing))
	assert.False(t, missing.Chores.IsPresent(), "missing chores keep the default")
	assert.False(t, missing.Dinner.IsPresent(), "null anchor times keep the default")

	in, err := req.Resolve()
	require.NoError(t, err)
	assert.Empty(t, in.Chores)

	in, err = missing.Resolve()
	require.NoError(t, err)
	assert.Equal(t, DefaultChores(), in.Chores)
}

func TestRequestJSONRejectsWrongTypes(t *testing.T) {
	var req Request
	assert.Error(t, json.Unmarshal([]byte(`{"wake_up":700}`), &req))
	assert.Error(t, json.Unmarshal([]byte(`{"chores":"Set table"}`), &req))
}

func TestOptionalOrElse(t *testing.T) {
	assert.Equal(t, "x", Absent[string]().OrElse("x"))
	assert.Equal(t, "y", Present("y").OrElse("x"))
}

func TestOptionalMarshalJSON(t *testing.T) {
	b, err := json.Marshal(Request{WakeUp: Present("06:00")})
	require.NoError(t, err)
	assert.JSONEq(t, `{"wake_up":"06:00","school_start":null,"dinner":null,"chores":null}`, string(b))
}
