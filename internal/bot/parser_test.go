package bot

import (
	"testing"

	"ranchhand/internal/ledger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_Commands(t *testing.T) {
	cases := []struct {
		message string
		command int
		parseid int
	}{
		{"!payout", COMMAND_PAYOUT, PARSEID_OK},
		{"!wipe", COMMAND_WIPE, PARSEID_OK},
		{"!paid", COMMAND_PAID, PARSEID_OK},
		{"!settle", COMMAND_SETTLE, PARSEID_OK},
		{"!payout now please", COMMAND_PAYOUT, PARSEID_OK},
		{"!dance", 0, PARSEID_COMMAND_NOT_RECOGNISED},
		{"!", 0, PARSEID_COMMAND_NOT_RECOGNISED},
		{"hello there", 0, PARSEID_NO_BOT_PREFIX},
		{"", 0, PARSEID_NO_BOT_PREFIX},
	}

	for _, tc := range cases {
		result := Parse(tc.message)
		assert.Equal(t, tc.parseid, result.parseid, "message %q", tc.message)
		if tc.parseid == PARSEID_OK {
			assert.Equal(t, tc.command, result.command, "message %q", tc.message)
		}
	}
}

func TestParseAccrual(t *testing.T) {
	text := "<@145685281775812608> 1 Xx_JussKiddin_xX\nMilk Added\nAdded Milk to ranch id 12 : 25"

	event, ok := ParseAccrual(text)
	require.True(t, ok)
	assert.Equal(t, "<@145685281775812608>", event.Identity)
	assert.Equal(t, "Xx_JussKiddin_xX", event.Name)
	assert.Equal(t, ledger.ResourceMilk, event.Resource)
	assert.Equal(t, 25, event.Quantity)
}

func TestParseAccrual_NicknameMention(t *testing.T) {
	text := "<@!42> 1 Buck\nEggs Added\nAdded Eggs to ranch id 3 : 7"

	event, ok := ParseAccrual(text)
	require.True(t, ok)
	// the nickname mention form normalizes to the plain one
	assert.Equal(t, "<@42>", event.Identity)
	assert.Equal(t, ledger.ResourceEggs, event.Resource)
	assert.Equal(t, 7, event.Quantity)
}

func TestParseAccrual_Mismatches(t *testing.T) {
	cases := []struct {
		name string
		text string
	}{
		{"no mention", "Somebody 1 Buck\nMilk Added\nAdded Milk to ranch id 12 : 25"},
		{"no item line", "<@42> 1 Buck\nAdded Milk to ranch id 12 : 25"},
		{"no quantity line", "<@42> 1 Buck\nMilk Added"},
		{"wrong item", "<@42> 1 Buck\nWool Added\nAdded Wool to ranch id 12 : 25"},
		{"empty", ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, ok := ParseAccrual(tc.text)
			assert.False(t, ok)
		})
	}
}

func TestParseCattleTransaction_Purchase(t *testing.T) {
	text := "Bought Cattle\nPlayer **Buck** bought **2** **Hereford** cattle for **$300**"

	tx, ok := ParseCattleTransaction(text)
	require.True(t, ok)
	assert.Equal(t, "Buck", tx.Player)
	assert.Equal(t, 2, tx.Count)
	assert.Equal(t, "Hereford", tx.Type)
	assert.Equal(t, "$300", tx.Price)
	assert.Equal(t, DIRECTION_BOUGHT, tx.Direction)
}

func TestParseCattleTransaction_Sale(t *testing.T) {
	text := "Cattle Sale\nPlayer **Daisy** sold **3** **Angus** for **$450.50**"

	tx, ok := ParseCattleTransaction(text)
	require.True(t, ok)
	assert.Equal(t, "Daisy", tx.Player)
	assert.Equal(t, 3, tx.Count)
	assert.Equal(t, "Angus", tx.Type)
	assert.Equal(t, "$450.50", tx.Price)
	assert.Equal(t, DIRECTION_SOLD, tx.Direction)
}

func TestParseCattleTransaction_Mismatches(t *testing.T) {
	// gate word present but no transaction pattern
	_, ok := ParseCattleTransaction("Cattle Sale happened somewhere")
	assert.False(t, ok)

	// no gate word at all
	_, ok = ParseCattleTransaction("Player **Buck** bought **2** **Hereford** cattle for **$300**")
	assert.False(t, ok)
}

func TestNormalizeMention(t *testing.T) {
	assert.Equal(t, "<@42>", NormalizeMention("<@!42>"))
	assert.Equal(t, "<@42>", NormalizeMention("<@42>"))
	assert.Equal(t, "not a mention", NormalizeMention("not a mention"))
}

func TestMentionUserID(t *testing.T) {
	id, ok := MentionUserID("<@145685281775812608>")
	require.True(t, ok)
	assert.Equal(t, "145685281775812608", id)

	_, ok = MentionUserID("Buck")
	assert.False(t, ok)
}
