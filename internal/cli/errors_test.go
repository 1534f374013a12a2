package cli

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExitCode(t *testing.T) {
	cause := errors.New("boom")

	assert.Equal(t, ExitSuccess, ExitCode(nil))
	assert.Equal(t, ExitGeneral, ExitCode(cause))
	assert.Equal(t, ExitConfig, ExitCode(ConfigError("bad config", cause)))
	assert.Equal(t, ExitQueryParse, ExitCode(QueryParseError("bad query", cause)))
	assert.Equal(t, ExitDBConnect, ExitCode(DBConnectError("no db", cause)))
	assert.Equal(t, ExitUnsafe, ExitCode(UnsafeError("unsafe", cause)))
	assert.Equal(t, ExitUnsafe, ExitCode(fmt.Errorf("wrapped: %w", UnsafeError("unsafe", cause))))
}

func TestExitErrorMessage(t *testing.T) {
	err := QueryParseError("parsing query", errors.New("offset 3: unexpected ')'"))
	assert.Equal(t, "parsing query: offset 3: unexpected ')'", err.Error())
	assert.Equal(t, "plain", (&ExitError{Message: "plain"}).Error())
}
