package pdf

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestInspector_RejectsNonPDF(t *testing.T) {
	i := NewInspector(zap.NewNop())

	_, err := i.PageCount(nil)
	assert.ErrorIs(t, err, ErrEmptyDocument)

	_, err = i.PageCount([]byte("this is not a pdf"))
	assert.Error(t, err)
}
