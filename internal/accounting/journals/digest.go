package journals

import (
	"encoding/hex"
	"strconv"
	"time"

	"golang.org/x/crypto/blake2b"
)

const digestSep = 0x1f

// Digest returns the BLAKE2b-256 fingerprint of the entry's posted content.
// Ids assigned by the database are excluded so it can be computed before insert.
func Digest(e Entry) string {
	h, _ := blake2b.New256(nil)
	write := func(s string) {
		_, _ = h.Write([]byte(s))
		_, _ = h.Write([]byte{digestSep})
	}
	write(strconv.FormatInt(e.TenantID, 10))
	write(e.Date.Format(time.DateOnly))
	write(e.Description)
	write(e.SourceTag)
	write(e.Total.StringFixed(AmountScale))
	write(string(e.Reference.Kind))
	write(strconv.FormatInt(e.Reference.SourceID, 10))
	write(e.Reference.Qualifier)
	write(strconv.FormatBool(e.Reference.Exclusive))
	if e.ReversalOf != nil {
		write(strconv.FormatInt(*e.ReversalOf, 10))
	} else {
		write("")
	}
	for _, l := range e.Lines {
		write(strconv.Itoa(l.LineNo))
		write(strconv.FormatInt(l.AccountID, 10))
		write(l.Debit.StringFixed(AmountScale))
		write(l.Credit.StringFixed(AmountScale))
		write(l.Memo)
	}
	return hex.EncodeToString(h.Sum(nil))
}
