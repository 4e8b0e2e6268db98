package checkout

import (
	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// PaymentMethod enumerates how a sale is settled.
type PaymentMethod string

const (
	// PaymentCash is settlement in cash; it is the default method.
	PaymentCash PaymentMethod = "cash"
	// PaymentCard is settlement by bank card on the shop's own terminal.
	PaymentCard PaymentMethod = "card"
	// PaymentCheck is settlement by cheque.
	PaymentCheck PaymentMethod = "check"
	// PaymentSumUp is settlement through the third-party SumUp terminal.
	PaymentSumUp PaymentMethod = "sumup"
	// PaymentInstallment splits the total into several equal payments.
	PaymentInstallment PaymentMethod = "installment"
)

// Installment count bounds for PaymentInstallment.
const (
	MinInstallments = 2
	MaxInstallments = 4
)

var (
	// ErrUnknownPaymentMethod is returned when parsing a payment method fails.
	ErrUnknownPaymentMethod = errors.New("unknown payment method")
	// ErrInvalidInstallments is returned for an installment count outside
	// [MinInstallments, MaxInstallments].
	ErrInvalidInstallments = errors.New("installment count must be between 2 and 4")
)

// ParsePaymentMethod converts a wire identifier into a PaymentMethod.
func ParsePaymentMethod(s string) (PaymentMethod, error) {
	switch m := PaymentMethod(s); m {
	case PaymentCash, PaymentCard, PaymentCheck, PaymentSumUp, PaymentInstallment:
		return m, nil
	default:
		return "", errors.Wrapf(ErrUnknownPaymentMethod, "%q", s)
	}
}

// Payment is the payment choice made on the till for the current sale.
type Payment struct {
	Method PaymentMethod
	// Installments is the installment count chosen for PaymentInstallment.
	// It is ignored for every other method.
	Installments int
}

// DefaultPayment is the payment state of a fresh sale.
func DefaultPayment() Payment {
	return Payment{Method: PaymentCash, Installments: 1}
}

// Count returns the number of settlements: the chosen installment count for
// PaymentInstallment, 1 otherwise.
func (p Payment) Count() int {
	if p.Method == PaymentInstallment {
		return p.Installments
	}
	return 1
}

// Validate checks the installment count when paying in installments.
func (p Payment) Validate() error {
	if _, err := ParsePaymentMethod(string(p.Method)); err != nil {
		return err
	}
	if p.Method != PaymentInstallment {
		return nil
	}
	if p.Installments < MinInstallments || p.Installments > MaxInstallments {
		return ErrInvalidInstallments
	}
	return nil
}

// InstallmentAmount returns total split in count equal parts, rounded to the
// cent. The remainder of an uneven split is not redistributed.
func InstallmentAmount(total decimal.Decimal, count int) decimal.Decimal {
	if count < 1 {
		count = 1
	}
	return total.Div(decimal.NewFromInt(int64(count))).Round(2)
}

// InstallmentPlan returns the amount of each of the count payments.
func InstallmentPlan(total decimal.Decimal, count int) []decimal.Decimal {
	if count < 1 {
		count = 1
	}
	amount := InstallmentAmount(total, count)
	plan := make([]decimal.Decimal, count)
	for i := range plan {
		plan[i] = amount
	}
	return plan
}
