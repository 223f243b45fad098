package derive

import (
	"strings"

	"github.com/dvloznov/prioridades-pago/internal/domain"
)

// PaymentCurrency picks the currency the invoice is paid in.
func PaymentCurrency(currency string, priority int) string {
	switch normalize(currency) {
	case domain.CurrencyEUR:
		return domain.CurrencyEUR
	case domain.CurrencyCOP:
		return domain.CurrencyCOP
	case domain.CurrencyUSD:
		if domain.InSet(domain.USDPaymentPriorities, priority) {
			return domain.CurrencyUSD
		}
	}
	return domain.CurrencyVES
}

// BankAccount picks the paying account. USD invoices outside the
// account-preserving priorities go to the default USD account.
func BankAccount(currency string, priority int, account string) string {
	if normalize(currency) != domain.CurrencyUSD {
		return account
	}
	if domain.InSet(domain.USDAccountPriorities, priority) {
		return account
	}
	return domain.DefaultUSDAccount
}

// PaymentDay is VIERNES for hard-currency payments and JUEVES otherwise.
func PaymentDay(paymentCurrency string) string {
	switch normalize(paymentCurrency) {
	case domain.CurrencyUSD, domain.CurrencyEUR:
		return domain.DayFriday
	}
	return domain.DayThursday
}

// FinalAmount converts the invoice amount into the paid amount.
func FinalAmount(amount float64, currency string, priority int, day string, rates domain.RateSnapshot) float64 {
	if amount == 0 {
		return 0
	}
	if normalize(currency) == domain.CurrencyVES {
		return amount
	}
	if domain.InSet(domain.NoConversionPriorities, priority) {
		return amount
	}
	if day == "" || normalize(day) == domain.DayThursday {
		return amount * rates.VESUSDMargin
	}
	return amount * rates.VESUSD
}

// CapexFinal is the CAPEX share of the final amount.
func CapexFinal(ext, ord, admin, final float64) float64 {
	if ext == 0 && ord == 0 {
		return 0
	}
	total := ext + ord + admin
	if total == 0 {
		return 0
	}
	return (ext + ord) / total * final
}

// OpexFinal is the administrative share of the final amount. Together with
// CapexFinal it always adds up to final.
func OpexFinal(ext, ord, admin, final float64) float64 {
	if ext == 0 && ord == 0 {
		return final
	}
	total := ext + ord + admin
	if total == 0 {
		return final
	}
	return admin / total * final
}

// Area classifies a record. Recharge providers win over the requester code;
// a zero or blank code is SERVICIOS; unknown codes are SERVICIOS.
func Area(provider, branch, requester string, areas domain.AreaTable) string {
	if IsRecharge(provider, branch) {
		return domain.AreaRecharge
	}
	code := strings.TrimSpace(requester)
	if code == "" {
		return domain.AreaServices
	}
	if domain.IsNumeric(code) && domain.ParseNumber(code) == 0 {
		return domain.AreaServices
	}
	if area, ok := areas.Lookup(code); ok {
		return area
	}
	return domain.AreaServices
}

// IsRecharge reports whether provider, optionally qualified by branch, is a
// recharge provider. Names match when either contains the other, ignoring
// case, so a short provider name that occurs inside a recharge provider's
// name ("P", "SIMPLE TV") matches too. Blank names never match.
func IsRecharge(provider, branch string) bool {
	prov := normalize(provider)
	if prov == "" {
		return false
	}
	for _, name := range domain.AlwaysRechargeProviders {
		if overlaps(prov, normalize(name)) {
			return true
		}
	}
	suc := normalize(branch)
	if suc == "" {
		return false
	}
	for name, branches := range domain.ConditionalRechargeProviders {
		if !overlaps(prov, normalize(name)) {
			continue
		}
		for _, b := range branches {
			if overlaps(suc, normalize(b)) {
				return true
			}
		}
	}
	return false
}

// CapexType2 is the top-level classification.
func CapexType2(area string, capexFinal, opexFinal float64) string {
	switch {
	case normalize(area) == domain.AreaRecharge:
		return domain.TypeRecharge
	case capexFinal != 0 && opexFinal != 0:
		return domain.TypeMixed
	case capexFinal != 0:
		return domain.TypeCapex
	}
	return domain.TypeOpex
}

// CapexType is the CAPEX sub-classification.
func CapexType(area, capexType2 string, ext, ord float64) string {
	switch {
	case normalize(area) == domain.AreaRecharge:
		return domain.TypeRecharge
	case normalize(capexType2) == domain.TypeOpex:
		return domain.TypeOpex
	case ext != 0 && ord != 0:
		return domain.TypeMixed
	case ext != 0:
		return domain.TypeExt
	}
	return domain.TypeOrd
}

// CapexOrd2 is the ordinary part of the CAPEX amount.
func CapexOrd2(capexType string, capexFinal, ext, ord float64) float64 {
	return capexSplit(capexType, domain.TypeOrd, domain.TypeExt, capexFinal, ord, ext)
}

// CapexExt3 is the external part of the CAPEX amount.
func CapexExt3(capexType string, capexFinal, ext, ord float64) float64 {
	return capexSplit(capexType, domain.TypeExt, domain.TypeOrd, capexFinal, ext, ord)
}

func capexSplit(capexType, own, other string, capexFinal, ownAmount, otherAmount float64) float64 {
	switch normalize(capexType) {
	case domain.TypeOpex, domain.TypeRecharge, domain.TypeLoan, other:
		return 0
	case own:
		return capexFinal
	}
	total := ownAmount + otherAmount
	if total == 0 {
		return 0
	}
	return capexFinal * (ownAmount / total)
}

// ToUSD converts an amount expressed in the payment currency to USD.
// Currencies listed in passthrough are returned unchanged. Division by a
// zero rate yields 0.
func ToUSD(amount float64, paymentCurrency, day string, rates domain.RateSnapshot, passthrough ...string) float64 {
	if amount == 0 {
		return 0
	}
	cur := normalize(paymentCurrency)
	if cur == domain.CurrencyUSD {
		return amount
	}
	for _, p := range passthrough {
		if cur == p {
			return amount
		}
	}
	if cur == domain.CurrencyEUR {
		return amount * rates.EURUSD
	}
	rate := rates.VESUSDMargin
	if normalize(day) == domain.DayTuesday {
		rate = rates.VESUSD
	}
	if rate == 0 {
		return 0
	}
	return amount / rate
}

// CapexOrdUSD converts the ordinary CAPEX part.
func CapexOrdUSD(capexOrd2 float64, paymentCurrency, day string, rates domain.RateSnapshot) float64 {
	return ToUSD(capexOrd2, paymentCurrency, day, rates)
}

// CapexExtUSD converts the external CAPEX part. COP amounts are kept as is.
func CapexExtUSD(capexExt3 float64, paymentCurrency, day string, rates domain.RateSnapshot) float64 {
	return ToUSD(capexExt3, paymentCurrency, day, rates, domain.CurrencyCOP)
}

// CapexUSD converts the CAPEX amount. COP amounts are kept as is.
func CapexUSD(capexFinal float64, paymentCurrency, day string, rates domain.RateSnapshot) float64 {
	return ToUSD(capexFinal, paymentCurrency, day, rates, domain.CurrencyCOP)
}

// OpexUSD converts the OPEX amount.
func OpexUSD(opexFinal float64, paymentCurrency, day string, rates domain.RateSnapshot) float64 {
	return ToUSD(opexFinal, paymentCurrency, day, rates)
}

func normalize(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

func overlaps(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	return strings.Contains(a, b) || strings.Contains(b, a)
}
