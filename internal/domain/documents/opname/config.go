package opname

import "stockkeeper/internal/core/code"

// CodeEntityType is the numerator entity type for stock counts (SOP codes).
const CodeEntityType = code.StockOpnames
