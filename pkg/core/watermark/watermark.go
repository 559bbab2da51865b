//
//  Copyright © Manetu Inc. All rights reserved.
//

// Package watermark derives partner-specific content fingerprints.
package watermark

import (
	"crypto/sha256"
	"encoding/hex"
)

// Generate returns the hex SHA-256 of content followed by partnerID.
func Generate(content, partnerID string) string {
	sum := sha256.Sum256([]byte(content + partnerID))
	return hex.EncodeToString(sum[:])
}
