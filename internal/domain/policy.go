package domain

// Priority codes that keep USD as payment currency.
var USDPaymentPriorities = intSet(69, 70, 71, 72, 73, 74, 75, 76, 77, 87, 86, 88, 84, 85)

// Priority codes that keep the original bank account for USD invoices.
// Same as USDPaymentPriorities plus 83.
var USDAccountPriorities = intSet(69, 70, 71, 72, 73, 74, 75, 76, 77, 87, 86, 88, 83, 84, 85)

// Priority codes whose amount is never converted into Monto Final.
var NoConversionPriorities = intSet(67, 69, 70, 71, 72, 73, 74, 75, 76, 77, 87, 86, 88, 83, 84, 85, 89)

// DefaultUSDAccount replaces the account of USD invoices outside
// USDAccountPriorities.
const DefaultUSDAccount = "1111"

// ThursdayMargin is added to the VES/USD rate on JUEVES payments.
const ThursdayMargin = 5.0

// Providers whose invoices are always RECARGAS.
var AlwaysRechargeProviders = []string{
	"GALAXY ENTERTAINMENT DE VENEZUELA, C.A. (SIMPLE TV )",
	"RECARGAS MOVIL C.A",
}

// Providers that are RECARGAS only for the listed branches.
var ConditionalRechargeProviders = map[string][]string{
	"CORPORACION DIGITEL, C.A.":   {"POSPAGO FACTURA", "PREPAGO RECARGA"},
	"NETUNO, C.A.":                {"RECARGAS"},
	"TELEFÓNICA VENEZOLANA, C.A.": {"RECARGAS"},
	"TELEFONICA VENEZOLANA, C.A.": {"RECARGAS"},
}

// InSet reports whether code is in set.
func InSet(set map[int]struct{}, code int) bool {
	_, ok := set[code]
	return ok
}

func intSet(values ...int) map[int]struct{} {
	set := make(map[int]struct{}, len(values))
	for _, v := range values {
		set[v] = struct{}{}
	}
	return set
}
