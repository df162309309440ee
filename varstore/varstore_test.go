package varstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

var testPage = `
name: substitutions
tld: "(com|net|biz)"
---
name: badusername
regexes:
  - "^Bot\\d+$"
  - "^[a-z]+-[a-z]+-\\d{2,4}$"
maxAgeDays: 30
karmaThreshold: 100
---
name: linkfarm
killswitch: true
domainregexes:
  - "shady[a-z]*\\.{{tld}}"
threshold: 3
`

func TestLoaderBasics(t *testing.T) {
	assert := assert.New(t)

	loader := NewLoader(nil)
	installed, err := loader.Load("rev1", testPage)
	assert.NoError(err)
	assert.True(installed)

	vars := loader.Current()
	assert.Equal("rev1", vars.Revision())
	assert.Equal(30, vars.GetInt("badusername", "maxAgeDays", 0))
	assert.Equal(100, vars.GetInt("badusername", "karmaThreshold", 0))
	assert.Equal(7, vars.GetInt("badusername", "missing", 7))
	assert.True(vars.Killswitch("linkfarm"))
	assert.False(vars.Killswitch("badusername"))

	res := vars.GetRegexes("badusername", "regexes")
	assert.Len(res, 2)
	assert.True(res[0].MatchString("Bot42"))
	assert.False(res[0].MatchString("NotABot"))

	// substitution was expanded before compilation
	domains := vars.GetRegexes("linkfarm", "domainregexes")
	assert.Len(domains, 1)
	assert.True(domains[0].MatchString("shadydeals.biz"))

	// same revision short-circuits
	installed, err = loader.Load("rev1", "garbage: [")
	assert.NoError(err)
	assert.False(installed)
}

func TestLoaderKeepsLastKnownGood(t *testing.T) {
	assert := assert.New(t)

	loader := NewLoader(nil)
	_, err := loader.Load("rev1", testPage)
	assert.NoError(err)

	// unparsable page is rejected
	installed, err := loader.Load("rev2", "name: oops\nregexes: [\"([a-z\"]\n")
	assert.Error(err)
	assert.False(installed)
	assert.Equal("rev1", loader.Current().Revision())

	// unsafe (backtracking-prone) pattern is rejected too
	installed, err = loader.Load("rev3", "name: oops\nregexes:\n  - \"(a+)+b\"\n")
	assert.Error(err)
	assert.False(installed)
	var le *LoadError
	assert.ErrorAs(err, &le)
	assert.Equal("oops", le.Problems[0].Module)
	assert.Equal("rev1", loader.Current().Revision())

	// a later valid page replaces the whole thing
	stale := loader.Current()
	installed, err = loader.Load("rev4", "name: fresh\nthreshold: 5\n")
	assert.NoError(err)
	assert.True(installed)
	assert.Equal(5, loader.Current().GetInt("fresh", "threshold", 0))
	assert.Equal(0, loader.Current().GetInt("badusername", "maxAgeDays", 0))
	// a stale handle keeps working against its own snapshot
	assert.Equal(30, stale.GetInt("badusername", "maxAgeDays", 0))
}

func TestParsePageProblems(t *testing.T) {
	assert := assert.New(t)

	// document without a name
	_, err := ParsePage("threshold: 5\n")
	assert.Error(err)

	// duplicate module names
	_, err = ParsePage("name: dup\nx: 1\n---\nname: dup\ny: 2\n")
	assert.Error(err)

	// non-string substitution value
	_, err = ParsePage("name: substitutions\ntld: 42\n")
	assert.Error(err)
}

func TestCheckPattern(t *testing.T) {
	assert := assert.New(t)

	assert.NoError(CheckPattern(`^Bot\d+$`))
	assert.NoError(CheckPattern(`(abc|def)+`))
	assert.Error(CheckPattern(`([a-z`))
	assert.Error(CheckPattern(`(a+)+b`))
	assert.Error(CheckPattern(`(\d*x\d*)*y`))
}
