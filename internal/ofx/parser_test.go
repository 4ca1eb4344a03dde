package ofx

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/Veraticus/narration-resolver/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const header = `OFXHEADER:100
DATA:OFXSGML
VERSION:102
SECURITY:NONE
ENCODING:USASCII
CHARSET:1252
COMPRESSION:NONE
OLDFILEUID:NONE
NEWFILEUID:NONE

`

const savingsStatement = header + `<OFX>
<SIGNONMSGSRSV1>
<SONRS>
<STATUS>
<CODE>0
<SEVERITY>INFO
</STATUS>
<DTSERVER>20240315120000[0:GMT]
<LANGUAGE>ENG
</SONRS>
</SIGNONMSGSRSV1>
<BANKMSGSRSV1>
<STMTTRNRS>
<TRNUID>1
<STATUS>
<CODE>0
<SEVERITY>INFO
</STATUS>
<STMTRS>
<CURDEF>INR
<BANKACCTFROM>
<BANKID>HDFC0000001
<ACCTID>50100012345678
<ACCTTYPE>SAVINGS
</BANKACCTFROM>
<BANKTRANLIST>
<DTSTART>20240301000000[0:GMT]
<DTEND>20240331000000[0:GMT]
<STMTTRN>
<TRNTYPE>DEBIT
<DTPOSTED>20240305120000[0:GMT]
<TRNAMT>-450.00
<FITID>N0001
<NAME>UPI-ZOMATO-ZOMATO@HDFCBANK
<MEMO>UPI/406512345678/Payment
</STMTTRN>
<STMTTRN>
<TRNTYPE>CREDIT
<DTPOSTED>20240310120000[0:GMT]
<TRNAMT>85000.00
<FITID>N0002
<NAME>NEFT CR-ACME TECHNOLOGIES PVT LTD
</STMTTRN>
<STMTTRN>
<TRNTYPE>CHECK
<DTPOSTED>20240312120000[0:GMT]
<TRNAMT>-12000.00
<FITID>N0003
<CHECKNUM>000123
<NAME>CHQ PAID
<MEMO>CHQ PAID
</STMTTRN>
</BANKTRANLIST>
<LEDGERBAL>
<BALAMT>150000.00
<DTASOF>20240331000000[0:GMT]
</LEDGERBAL>
</STMTRS>
</STMTTRNRS>
</BANKMSGSRSV1>
</OFX>
`

const cardStatement = header + `<OFX>
<SIGNONMSGSRSV1>
<SONRS>
<STATUS>
<CODE>0
<SEVERITY>INFO
</STATUS>
<DTSERVER>20240315120000[0:GMT]
<LANGUAGE>ENG
</SONRS>
</SIGNONMSGSRSV1>
<CREDITCARDMSGSRSV1>
<CCSTMTTRNRS>
<TRNUID>1
<STATUS>
<CODE>0
<SEVERITY>INFO
</STATUS>
<CCSTMTRS>
<CURDEF>INR
<CCACCTFROM>
<ACCTID>4111XXXXXXXX1111
</CCACCTFROM>
<BANKTRANLIST>
<DTSTART>20240301000000[0:GMT]
<DTEND>20240331000000[0:GMT]
<STMTTRN>
<TRNTYPE>DEBIT
<DTPOSTED>20240308120000[0:GMT]
<TRNAMT>-649.00
<FITID>C0001
<NAME>NETFLIX.COM
</STMTTRN>
</BANKTRANLIST>
<LEDGERBAL>
<BALAMT>-649.00
<DTASOF>20240331000000[0:GMT]
</LEDGERBAL>
</CCSTMTRS>
</CCSTMTTRNRS>
</CREDITCARDMSGSRSV1>
</OFX>
`

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantLen int
		wantErr bool
	}{
		{name: "savings statement", input: savingsStatement, wantLen: 3},
		{name: "card statement", input: cardStatement, wantLen: 1},
		{name: "leading blank lines", input: "\n\n  " + cardStatement, wantLen: 1},
		{name: "not ofx", input: "date,narration,amount\n", wantErr: true},
		{name: "empty", input: "", wantErr: true},
	}

	parser := NewParser()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parser.Parse(context.Background(), strings.NewReader(tt.input))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Len(t, got, tt.wantLen)
		})
	}
}

func TestParse_SavingsFields(t *testing.T) {
	got, err := NewParser().Parse(context.Background(), strings.NewReader(savingsStatement))
	require.NoError(t, err)
	require.Len(t, got, 3)

	upi := got[0]
	assert.Equal(t, "N0001", upi.ID)
	assert.Equal(t, "UPI-ZOMATO-ZOMATO@HDFCBANK", upi.Name)
	assert.Equal(t, "UPI/406512345678/Payment", upi.Memo)
	assert.InDelta(t, -450.00, upi.Amount, 0.001)
	assert.Equal(t, "50100012345678", upi.AccountID)
	assert.Equal(t, "DEBIT", upi.Type)
	assert.Equal(t, time.Date(2024, 3, 5, 12, 0, 0, 0, time.UTC), upi.Date.UTC())
	assert.NotEmpty(t, upi.Hash)

	assert.InDelta(t, 85000.00, got[1].Amount, 0.001, "credits keep a positive sign")
	assert.Equal(t, "000123", got[2].CheckNumber)
	assert.Equal(t, "CHECK", got[2].Type)
}

func TestParse_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewParser().Parse(ctx, strings.NewReader(cardStatement))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestParse_HashesAreStable(t *testing.T) {
	parser := NewParser()
	first, err := parser.Parse(context.Background(), strings.NewReader(savingsStatement))
	require.NoError(t, err)
	second, err := parser.Parse(context.Background(), strings.NewReader(savingsStatement))
	require.NoError(t, err)

	seen := make(map[string]bool)
	for i := range first {
		assert.Equal(t, first[i].Hash, second[i].Hash)
		assert.False(t, seen[first[i].Hash], "hash collision at %d", i)
		seen[first[i].Hash] = true
	}
}

func TestNarrations(t *testing.T) {
	got, err := NewParser().Parse(context.Background(), strings.NewReader(savingsStatement))
	require.NoError(t, err)

	assert.Equal(t, []string{
		"UPI-ZOMATO-ZOMATO@HDFCBANK UPI/406512345678/Payment",
		"NEFT CR-ACME TECHNOLOGIES PVT LTD",
		"CHQ PAID",
	}, Narrations(got))
	assert.Empty(t, Narrations([]model.Transaction{}))
}

func TestClean(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "uppercases severity", input: "<SEVERITY>Warn</SEVERITY>", want: "<SEVERITY>WARN</SEVERITY>"},
		{name: "closes bare tag", input: "<STMTTRN>\n<BANKTRANLIST\n", want: "<STMTTRN>\n<BANKTRANLIST>\n"},
		{name: "leaves values alone", input: "<NAME>UPI-ZOMATO", want: "<NAME>UPI-ZOMATO"},
		{name: "trims leading space", input: " \r\n<OFX>", want: "<OFX>"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, clean(tt.input))
		})
	}
}
