package repository

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestListOrdersPhoneFilterIsSubstring(t *testing.T) {
	assert.Contains(t, listOrdersWhere, "strpos(phone_number, $4) > 0")
	assert.NotContains(t, listOrdersWhere, "LIKE")
}
