package dispatcher

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/yourorg/imageforge/internal/config"
	"github.com/yourorg/imageforge/internal/domain"
)

// Submit's validation runs entirely before any persistence call (§4.1:
// "Failure before commit leaves no partial job"), so these cases exercise
// validation with a nil store — reaching the store would panic and fail
// the test, proving validation short-circuits first.
func TestSubmitValidationRejectsEmptyPromptList(t *testing.T) {
	d := New(nil, config.Config{}, nil, nil, nil)
	_, _, err := d.Submit(context.Background(), nil, domain.StyleOutdoor, 1)
	require.Error(t, err)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
}

func TestSubmitValidationRejectsBlankPrompt(t *testing.T) {
	d := New(nil, config.Config{}, nil, nil, nil)
	_, _, err := d.Submit(context.Background(), []string{"a real prompt", "   "}, domain.StyleOutdoor, 1)
	require.Error(t, err)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
}

func TestSubmitValidationRejectsUnknownStyle(t *testing.T) {
	d := New(nil, config.Config{}, nil, nil, nil)
	_, _, err := d.Submit(context.Background(), []string{"a prompt"}, domain.Style("not_a_style"), 1)
	require.Error(t, err)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
}

func TestSubmitValidationRejectsCountPerPromptBelowOne(t *testing.T) {
	d := New(nil, config.Config{}, nil, nil, nil)
	_, _, err := d.Submit(context.Background(), []string{"a prompt"}, domain.StyleOutdoor, 0)
	require.Error(t, err)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
}
