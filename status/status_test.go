package status

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFlairMappingTotalAndBidirectional(t *testing.T) {
	assert := assert.New(t)

	seen := map[string]bool{}
	for _, s := range AllStatuses {
		flair := s.FlairID()
		assert.NotEmpty(flair)
		assert.False(seen[flair], "flair %s mapped twice", flair)
		seen[flair] = true

		back, err := FromFlairID(flair)
		assert.NoError(err)
		assert.Equal(s, back)
	}

	_, err := FromFlairID("flair-bogus")
	assert.Error(err)
}

func TestParseStatus(t *testing.T) {
	assert := assert.New(t)

	s, err := ParseStatus("banned")
	assert.NoError(err)
	assert.Equal(StatusBanned, s)

	_, err = ParseStatus("shadowbanned")
	assert.Error(err)
}

func TestEffective(t *testing.T) {
	assert := assert.New(t)

	banned := StatusBanned
	organic := StatusOrganic
	purged := StatusPurged

	fixtures := []struct {
		rec  *Record
		want Interpretation
	}{
		{nil, InterpretationUnknown},
		{&Record{Status: StatusBanned}, InterpretationBot},
		{&Record{Status: StatusDeclined}, InterpretationBot},
		{&Record{Status: StatusOrganic}, InterpretationHuman},
		{&Record{Status: StatusService}, InterpretationHuman},
		{&Record{Status: StatusPending}, InterpretationUnknown},
		{&Record{Status: StatusInactive}, InterpretationUnknown},
		{&Record{Status: StatusPurged}, InterpretationUnknown},
		{&Record{Status: StatusPurged, PreviousStatus: &banned}, InterpretationBot},
		{&Record{Status: StatusRetired, PreviousStatus: &organic}, InterpretationHuman},
		// a chained unreachable status must terminate, not loop
		{&Record{Status: StatusRetired, PreviousStatus: &purged}, InterpretationUnknown},
	}
	for _, fix := range fixtures {
		assert.Equal(fix.want, Effective(fix.rec))
	}
}

func TestPruneFlags(t *testing.T) {
	assert := assert.New(t)

	rec := Record{
		Account: "some-user",
		Status:  StatusOrganic,
		Flags:   []string{FlagRecovered, FlagDeclaredService, "made-up-flag"},
	}
	dropped := rec.PruneFlags()
	assert.Equal([]string{FlagRecovered}, rec.Flags)
	assert.Equal([]string{FlagDeclaredService, "made-up-flag"}, dropped)
	assert.True(rec.HasFlag(FlagRecovered))
	assert.False(rec.HasFlag(FlagDeclaredService))

	// pruning with no flags is a no-op
	rec2 := Record{Account: "other", Status: StatusBanned}
	assert.Nil(rec2.PruneFlags())
}
