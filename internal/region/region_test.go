package region

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"roadassist/internal/errs"
)

func buildTree(t *testing.T) (iran, khorasan, mashhad, neyshabur *Region) {
	t.Helper()
	iran = NewCountry("Iran")
	var err error
	khorasan, err = iran.AddProvince("Khorasan")
	require.NoError(t, err)
	mashhad, err = khorasan.AddCounty("Mashhad")
	require.NoError(t, err)
	neyshabur, err = khorasan.AddCounty("Neyshabur")
	require.NoError(t, err)
	return
}

func TestTreeInvariants(t *testing.T) {
	iran, khorasan, mashhad, _ := buildTree(t)

	assert.Nil(t, iran.Parent())
	assert.Equal(t, iran, khorasan.Parent())
	assert.Equal(t, khorasan, mashhad.Parent())

	_, err := mashhad.AddProvince("nested")
	assert.ErrorIs(t, err, errs.ErrInvalidArgument)
	_, err = iran.AddCounty("direct county")
	assert.ErrorIs(t, err, errs.ErrInvalidArgument)
}

func TestDuplicateSiblingName(t *testing.T) {
	iran, khorasan, _, _ := buildTree(t)

	_, err := iran.AddProvince("Khorasan")
	assert.ErrorIs(t, err, errs.ErrDuplicatedInfo)
	_, err = khorasan.AddCounty("Mashhad")
	assert.ErrorIs(t, err, errs.ErrDuplicatedInfo)
}

func TestIncludingRegions(t *testing.T) {
	iran, khorasan, mashhad, _ := buildTree(t)

	assert.Equal(t, []*Region{iran}, iran.IncludingRegions())
	assert.Equal(t, []*Region{iran, khorasan}, khorasan.IncludingRegions())
	assert.Equal(t, []*Region{iran, khorasan, mashhad}, mashhad.IncludingRegions())
}

func TestCounties(t *testing.T) {
	iran, khorasan, mashhad, neyshabur := buildTree(t)

	assert.Equal(t, []*Region{mashhad}, mashhad.Counties())
	assert.ElementsMatch(t, []*Region{mashhad, neyshabur}, khorasan.Counties())
	assert.ElementsMatch(t, []*Region{mashhad, neyshabur}, iran.Counties())
}

func TestContains(t *testing.T) {
	iran, khorasan, mashhad, _ := buildTree(t)
	fars, err := iran.AddProvince("Fars")
	require.NoError(t, err)

	assert.True(t, iran.Contains(mashhad))
	assert.True(t, khorasan.Contains(mashhad))
	assert.True(t, mashhad.Contains(mashhad))
	assert.False(t, fars.Contains(mashhad))
	assert.False(t, mashhad.Contains(khorasan))
}
