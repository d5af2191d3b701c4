package adjustment

import "stockkeeper/internal/core/code"

// CodeEntityType is the numerator entity type for stock adjustments (SMN codes).
const CodeEntityType = code.ManagementStocks
