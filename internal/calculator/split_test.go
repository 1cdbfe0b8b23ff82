package calculator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairshare/ledger/internal/models"
	"github.com/fairshare/ledger/internal/money"
)

func m(s string) money.Money { return money.MustParse(s) }

func parties(ids ...string) []models.Party {
	out := make([]models.Party, len(ids))
	for i, id := range ids {
		out[i] = models.Party(id)
	}
	return out
}

func sumShares(shares map[models.Party]money.Money) money.Money {
	var total money.Money
	for _, s := range shares {
		total = total.Add(s)
	}
	return total
}

func TestResolve(t *testing.T) {
	tests := []struct {
		name    string
		req     SplitRequest
		want    map[models.Party]string
		wantErr error
	}{
		{
			name: "paid by payer, split equally between two",
			req: SplitRequest{
				Policy:       PaidByPayerSplitEqually(),
				Total:        m("100.00"),
				Payer:        "alice",
				Participants: parties("alice", "bob"),
			},
			want: map[models.Party]string{"alice": "50.00", "bob": "50.00"},
		},
		{
			name: "ten split three ways gives the extra cent to the payer",
			req: SplitRequest{
				Policy:       PaidByPayerSplitEqually(),
				Total:        m("10.00"),
				Payer:        "carol",
				Participants: parties("alice", "bob", "carol"),
			},
			want: map[models.Party]string{"carol": "3.34", "alice": "3.33", "bob": "3.33"},
		},
		{
			name: "two leftover cents go to payer then first listed",
			req: SplitRequest{
				Policy:       PaidByPayerSplitEqually(),
				Total:        m("0.05"),
				Payer:        "bob",
				Participants: parties("alice", "bob", "carol"),
			},
			want: map[models.Party]string{"bob": "0.02", "alice": "0.02", "carol": "0.01"},
		},
		{
			name: "payer missing from participants still takes a share",
			req: SplitRequest{
				Policy:       PaidByPayerSplitEqually(),
				Total:        m("9.00"),
				Payer:        "alice",
				Participants: parties("bob", "carol"),
			},
			want: map[models.Party]string{"alice": "3.00", "bob": "3.00", "carol": "3.00"},
		},
		{
			name: "payer owed full amount, two parties",
			req: SplitRequest{
				Policy:       PayerOwedFullAmount(),
				Total:        m("42.00"),
				Payer:        "alice",
				Participants: parties("alice", "bob"),
			},
			want: map[models.Party]string{"alice": "0.00", "bob": "42.00"},
		},
		{
			name: "payer owed full amount, apportioned among the others",
			req: SplitRequest{
				Policy:       PayerOwedFullAmount(),
				Total:        m("10.00"),
				Payer:        "alice",
				Participants: parties("alice", "bob", "carol", "dave"),
			},
			want: map[models.Party]string{"alice": "0.00", "bob": "3.34", "carol": "3.33", "dave": "3.33"},
		},
		{
			name: "payer owed full amount with explicit shares",
			req: SplitRequest{
				Policy: SplitPolicy{Kind: models.SplitPayerOwedFull, Shares: map[models.Party]money.Money{
					"bob": m("30.00"), "carol": m("12.00"),
				}},
				Total:        m("42.00"),
				Payer:        "alice",
				Participants: parties("bob", "carol"),
			},
			want: map[models.Party]string{"bob": "30.00", "carol": "12.00"},
		},
		{
			name: "counterparty paid, split equally",
			req: SplitRequest{
				Policy:       CounterpartyPaidSplitEqually(),
				Total:        m("25.01"),
				Payer:        "bob",
				Participants: parties("alice", "bob"),
				Initiator:    "alice",
			},
			want: map[models.Party]string{"bob": "12.51", "alice": "12.50"},
		},
		{
			name: "counterparty paid full amount",
			req: SplitRequest{
				Policy:       CounterpartyPaidFullAmount(),
				Total:        m("18.00"),
				Payer:        "bob",
				Participants: parties("alice", "bob"),
				Initiator:    "alice",
			},
			want: map[models.Party]string{"alice": "18.00", "bob": "0.00"},
		},
		{
			name: "custom shares with a zero participant",
			req: SplitRequest{
				Policy: CustomShares(map[models.Party]money.Money{
					"alice": m("0"), "bob": m("60.00"), "carol": m("40.00"),
				}),
				Total:        m("100.00"),
				Payer:        "bob",
				Participants: parties("alice", "bob", "carol"),
			},
			want: map[models.Party]string{"alice": "0.00", "bob": "60.00", "carol": "40.00"},
		},
		{
			name: "zero total",
			req: SplitRequest{
				Policy:       PaidByPayerSplitEqually(),
				Total:        money.Zero,
				Payer:        "alice",
				Participants: parties("alice", "bob"),
			},
			wantErr: ErrNonPositiveAmount,
		},
		{
			name: "negative total",
			req: SplitRequest{
				Policy:       PaidByPayerSplitEqually(),
				Total:        m("-5"),
				Payer:        "alice",
				Participants: parties("alice", "bob"),
			},
			wantErr: ErrNonPositiveAmount,
		},
		{
			name: "no participants",
			req: SplitRequest{
				Policy: PaidByPayerSplitEqually(),
				Total:  m("5"),
				Payer:  "alice",
			},
			wantErr: ErrInvalidPolicy,
		},
		{
			name: "duplicate participant",
			req: SplitRequest{
				Policy:       PaidByPayerSplitEqually(),
				Total:        m("5"),
				Payer:        "alice",
				Participants: parties("bob", "bob"),
			},
			wantErr: ErrInvalidPolicy,
		},
		{
			name: "custom shares missing a participant",
			req: SplitRequest{
				Policy:       CustomShares(map[models.Party]money.Money{"bob": m("10")}),
				Total:        m("10"),
				Payer:        "alice",
				Participants: parties("bob", "carol"),
			},
			wantErr: ErrInvalidPolicy,
		},
		{
			name: "custom shares not summing to total",
			req: SplitRequest{
				Policy:       CustomShares(map[models.Party]money.Money{"bob": m("6"), "carol": m("3")}),
				Total:        m("10"),
				Payer:        "alice",
				Participants: parties("bob", "carol"),
			},
			wantErr: ErrInvalidPolicy,
		},
		{
			name: "custom shares for a stranger",
			req: SplitRequest{
				Policy:       CustomShares(map[models.Party]money.Money{"bob": m("10"), "zed": m("0")}),
				Total:        m("10"),
				Payer:        "alice",
				Participants: parties("bob"),
			},
			wantErr: ErrInvalidPolicy,
		},
		{
			name: "custom shares negative",
			req: SplitRequest{
				Policy:       CustomShares(map[models.Party]money.Money{"bob": m("12"), "carol": m("-2")}),
				Total:        m("10"),
				Payer:        "alice",
				Participants: parties("bob", "carol"),
			},
			wantErr: ErrInvalidPolicy,
		},
		{
			name: "custom policy without shares",
			req: SplitRequest{
				Policy:       SplitPolicy{Kind: models.SplitCustomShares},
				Total:        m("10"),
				Payer:        "alice",
				Participants: parties("bob"),
			},
			wantErr: ErrInvalidPolicy,
		},
		{
			name: "payer owed full with nobody else",
			req: SplitRequest{
				Policy:       PayerOwedFullAmount(),
				Total:        m("10"),
				Payer:        "alice",
				Participants: parties("alice"),
			},
			wantErr: ErrInvalidPolicy,
		},
		{
			name: "counterparty policy with initiator as payer",
			req: SplitRequest{
				Policy:       CounterpartyPaidSplitEqually(),
				Total:        m("10"),
				Payer:        "alice",
				Participants: parties("alice", "bob"),
				Initiator:    "alice",
			},
			wantErr: ErrInvalidPolicy,
		},
		{
			name: "payer policy with someone else paying",
			req: SplitRequest{
				Policy:       PaidByPayerSplitEqually(),
				Total:        m("10"),
				Payer:        "bob",
				Participants: parties("alice", "bob"),
				Initiator:    "alice",
			},
			wantErr: ErrInvalidPolicy,
		},
		{
			name: "control character in participant",
			req: SplitRequest{
				Policy:       PaidByPayerSplitEqually(),
				Total:        m("10"),
				Payer:        "alice",
				Participants: parties("alice", "bob\x1fcarol"),
			},
			wantErr: ErrInvalidPolicy,
		},
		{
			name: "control character in payer",
			req: SplitRequest{
				Policy:       PayerOwedFullAmount(),
				Total:        m("10"),
				Payer:        "ali\nce",
				Participants: parties("ali\nce", "bob"),
			},
			wantErr: ErrInvalidPolicy,
		},
		{
			name: "unknown kind",
			req: SplitRequest{
				Policy:       SplitPolicy{Kind: "thirds"},
				Total:        m("10"),
				Payer:        "alice",
				Participants: parties("alice", "bob"),
			},
			wantErr: ErrInvalidPolicy,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			shares, err := Resolve(tt.req)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)

			got := make(map[models.Party]string, len(shares))
			for p, s := range shares {
				got[p] = s.String()
			}
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.req.Total, sumShares(shares))
		})
	}
}

func TestResolve_EqualSplitSumsExactly(t *testing.T) {
	names := []string{"p0", "p1", "p2", "p3", "p4", "p5", "p6", "p7", "p8"}
	for minor := int64(1); minor <= 2000; minor += 13 {
		for n := 1; n <= len(names); n++ {
			req := SplitRequest{
				Policy:       PaidByPayerSplitEqually(),
				Total:        money.FromMinorUnits(minor),
				Payer:        "p0",
				Participants: parties(names[:n]...),
			}
			shares, err := Resolve(req)
			require.NoError(t, err)
			require.Equal(t, req.Total, sumShares(shares), "total=%s n=%d", req.Total, n)
		}
	}
}

func TestResolve_Deterministic(t *testing.T) {
	req := SplitRequest{
		Policy:       PaidByPayerSplitEqually(),
		Total:        m("100.00"),
		Payer:        "dave",
		Participants: parties("alice", "bob", "carol", "dave", "erin", "frank"),
	}

	first, err := Resolve(req)
	require.NoError(t, err)
	for i := 0; i < 20; i++ {
		again, err := Resolve(req)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
	// 100.00 / 6 = 16.66 r 4: dave, alice, bob, carol get 16.67
	assert.Equal(t, "16.67", first["dave"].String())
	assert.Equal(t, "16.67", first["carol"].String())
	assert.Equal(t, "16.66", first["erin"].String())
	assert.Equal(t, "16.66", first["frank"].String())
}

func TestNewExpense(t *testing.T) {
	t.Run("resolves shares and copies participants", func(t *testing.T) {
		participants := parties("alice", "bob")
		e, err := NewExpense(ExpenseInput{
			Description: "  Pizza ",
			Split: SplitRequest{
				Policy:       PaidByPayerSplitEqually(),
				Total:        m("30.00"),
				Payer:        "alice",
				Participants: participants,
			},
			CreatedBy: "alice",
		})
		require.NoError(t, err)

		assert.NotEmpty(t, e.ID)
		assert.False(t, e.CreatedAt.IsZero())
		assert.Equal(t, "Pizza", e.Description)
		assert.Equal(t, models.SplitPaidByPayerEqually, e.Split)
		assert.Equal(t, m("15.00"), e.Shares["bob"])

		participants[0] = "mallory"
		assert.Equal(t, models.Party("alice"), e.Participants[0])
	})

	t.Run("requires a description", func(t *testing.T) {
		_, err := NewExpense(ExpenseInput{
			Split: SplitRequest{
				Policy:       PaidByPayerSplitEqually(),
				Total:        m("30.00"),
				Payer:        "alice",
				Participants: parties("alice", "bob"),
			},
		})
		require.ErrorIs(t, err, ErrInvalidEvent)
	})

	t.Run("propagates policy errors", func(t *testing.T) {
		_, err := NewExpense(ExpenseInput{
			Description: "Taxi",
			Split: SplitRequest{
				Policy:       PaidByPayerSplitEqually(),
				Total:        money.Zero,
				Payer:        "alice",
				Participants: parties("alice", "bob"),
			},
		})
		require.ErrorIs(t, err, ErrNonPositiveAmount)
	})
}
