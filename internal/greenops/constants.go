package greenops

// Unit Conversion Constants for normalizing emission masses to kilograms.
const (
	// GramsToKg converts grams to kilograms.
	GramsToKg = 0.001

	// KgToKg is the identity conversion for kilograms.
	KgToKg = 1.0

	// TonsToKg converts metric tons to kilograms.
	TonsToKg = 1000.0

	// PoundsToKg converts pounds to kilograms.
	PoundsToKg = 0.453592
)

// Global Warming Potentials over a 100-year horizon.
//
// GWP table names accepted by LookupGWPTable.
const (
	// GWPSetAR4 holds IPCC AR4 values (CH4 = 25, N2O = 298). It is the default
	// because most published national emission factor databases still use it.
	GWPSetAR4 = "ar4"
	// GWPSetAR5 holds IPCC AR5 values without climate-carbon feedbacks.
	GWPSetAR5 = "ar5"
	// GWPSetAR6 holds IPCC AR6 values (CH4 of fossil and non-fossil origin averaged).
	GWPSetAR6 = "ar6"

	// DefaultGWPSet is used when configuration does not name a table.
	DefaultGWPSet = GWPSetAR4
)

// AR4 GWP-100 values.
const (
	GWPCO2 = 1.0

	AR4CH4     = 25.0
	AR4N2O     = 298.0
	AR4SF6     = 22800.0
	AR4HFC134a = 1430.0
	AR4NF3     = 17200.0
)

// AR5 GWP-100 values.
const (
	AR5CH4     = 28.0
	AR5N2O     = 265.0
	AR5SF6     = 23500.0
	AR5HFC134a = 1300.0
	AR5NF3     = 16100.0
)

// AR6 GWP-100 values.
const (
	AR6CH4     = 27.9
	AR6N2O     = 273.0
	AR6SF6     = 24300.0
	AR6HFC134a = 1530.0
	AR6NF3     = 17400.0
)
