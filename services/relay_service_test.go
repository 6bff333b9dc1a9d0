package services

import (
	"testing"

	"github.com/keyrelay/go-keyrelay-server/global"
	"github.com/keyrelay/go-keyrelay-server/types"
	"github.com/stretchr/testify/assert"
)

func TestExtractHandle(t *testing.T) {
	global.Conf.Mail.AliasDomain = "keyrelay.cash"

	handle, err := extractHandle("gfhq2ttv@keyrelay.cash")
	assert.NoError(t, err)
	assert.Equal(t, "gfhq2ttv", handle)

	handle, err = extractHandle("GfHq2TTV@KEYRELAY.CASH")
	assert.NoError(t, err)
	assert.Equal(t, "gfhq2ttv", handle)

	handle, err = extractHandle("Somebody <gfhq2ttv@keyrelay.cash>")
	assert.NoError(t, err)
	assert.Equal(t, "gfhq2ttv", handle)

	_, err = extractHandle("gfhq2ttv@elsewhere.com")
	assert.Equal(t, types.ErrBadRequest, err)

	_, err = extractHandle("not-an-address")
	assert.Equal(t, types.ErrBadRequest, err)

	_, err = extractHandle("")
	assert.Equal(t, types.ErrBadRequest, err)
}
