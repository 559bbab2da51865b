//
//  Copyright © Manetu Inc. All rights reserved.
//

package common

import (
	"encoding/json"
	"fmt"
	"io"
)

// PrettyPrint writes an indented JSON rendering of data to w, or the marshal error if
// data cannot be encoded.
func PrettyPrint(w io.Writer, data interface{}) {
	p, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		_, _ = fmt.Fprintln(w, err)
		return
	}
	_, _ = fmt.Fprintln(w, string(p))
}
