// Copyright 2026 PingCAP, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package errors

import (
	"github.com/pingcap/errors"
)

// Is tests whether the specificated error causes the error `err`.
func Is(err error, is *errors.Error) bool {
	errorFound := errors.Find(err, func(e error) bool {
		//nolint:errorlint
		normalizedErr, ok := e.(*errors.Error)
		return ok && normalizedErr.ID() == is.ID()
	})
	return errorFound != nil
}

// Advisor errors.
var (
	ErrUnknown              = errors.Normalize("internal error", errors.RFCCodeText("Advisor:Common:ErrUnknown"))
	ErrInvalidArgument      = errors.Normalize("invalid argument", errors.RFCCodeText("Advisor:Common:ErrInvalidArgument"))
	ErrUnsupportedCandidate = errors.Normalize("unsupported candidate %T", errors.RFCCodeText("Advisor:Common:ErrUnsupportedCandidate"))

	// ErrStructuralMismatch is returned when a plan node does not have the shape or backing a
	// candidate kind expects. It is not retryable; the caller should drop or re-derive the candidate.
	ErrStructuralMismatch = errors.Normalize("plan structure mismatch: %s", errors.RFCCodeText("Advisor:Estimator:ErrStructuralMismatch"))
	// ErrDegenerateSample is returned when sampling produced no usable observation.
	ErrDegenerateSample = errors.Normalize("degenerate sample: %s", errors.RFCCodeText("Advisor:Estimator:ErrDegenerateSample"))

	ErrInvalidDescriptor = errors.Normalize("invalid source descriptor: %s", errors.RFCCodeText("Advisor:Source:ErrInvalidDescriptor"))
	ErrUnsupportedFormat = errors.Normalize("unsupported source format %q", errors.RFCCodeText("Advisor:Source:ErrUnsupportedFormat"))

	ErrStorageInvalidConfig = errors.Normalize("invalid external storage config", errors.RFCCodeText("Advisor:Storage:ErrStorageInvalidConfig"))
	ErrStorageNotFound      = errors.Normalize("object not found in external storage", errors.RFCCodeText("Advisor:Storage:ErrStorageNotFound"))

	ErrInvalidConfig = errors.Normalize("invalid config: %s", errors.RFCCodeText("Advisor:Config:ErrInvalidConfig"))
)
