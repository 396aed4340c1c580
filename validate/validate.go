// Copyright (c) 2025 The Deedpipe Project and its Contributors
//
// Permission is hereby granted, free of charge, to any person obtaining a copy of
// this software and associated documentation files (the "Software"), to deal in
// the Software without restriction, including without limitation the rights to
// use, copy, modify, merge, publish, distribute, sublicense, and/or sell copies
// of the Software, and to permit persons to whom the Software is furnished to do
// so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.

// Package validate cleans a freshly extracted deed record before it is
// persisted. Cleaning is field-local: a field that fails its shape check is
// nulled (with a remark), never the whole record. The only fatal condition
// is a record with no document id.
package validate

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/propregistry/deedpipe/deeds"
)

var (
	panPattern     = regexp.MustCompile(`^[A-Z]{5}[0-9]{4}[A-Z]$`)
	aadhaarPattern = regexp.MustCompile(`^[0-9]{12}$`)
	pincodePattern = regexp.MustCompile(`^[0-9]{6}$`)
	digitPattern   = regexp.MustCompile(`[0-9]`)

	// ISO and the day-first forms deeds actually print
	isoDatePattern      = regexp.MustCompile(`\b(\d{4})-(\d{2})-(\d{2})\b`)
	dayFirstDatePattern = regexp.MustCompile(`\b(\d{1,2})[-/](\d{1,2})[-/](\d{4})\b`)

	// relation markers that introduce a father's (or husband's) name; the
	// Kannada markers are son, daughter and wife
	relationPattern = regexp.MustCompile(`(?i)\b[SDW]/O\.?\s*|,?\s*(?:son|daughter|wife)\s+of\s+|\s*(?:ಮಗಳು|ಮಗ|ಪತ್ನಿ)\s*`)
)

// Cleans an extracted record in place and returns it. Returns a
// ValidationError only when the record is unusable (no document id); all
// other problems null the offending field and add a remark.
func Clean(record deeds.Record) (deeds.Record, error) {
	if record.DocumentId == "" {
		return record, &ValidationError{Message: "record has no document id"}
	}
	cleaned := record.Copy()

	var remarks []string
	note := func(format string, args ...any) {
		remarks = append(remarks, fmt.Sprintf(format, args...))
	}

	cleaned.TransactionDate = normalizeDate(cleaned.TransactionDate)

	cleanProperty(&cleaned.Property, note)
	for i := range cleaned.Buyers {
		cleanParty(&cleaned.Buyers[i], "buyer", note)
	}
	for i := range cleaned.Sellers {
		cleanParty(&cleaned.Sellers[i], "seller", note)
	}
	for i := range cleaned.ConfirmingParties {
		cleanParty(&cleaned.ConfirmingParties[i], "confirming party", note)
	}

	if len(remarks) > 0 {
		if cleaned.Property.Remarks != "" {
			remarks = append([]string{cleaned.Property.Remarks}, remarks...)
		}
		cleaned.Property.Remarks = strings.Join(remarks, "; ")
	}
	return cleaned, nil
}

func cleanProperty(p *deeds.Property, note func(string, ...any)) {
	p.SaleConsideration = normalizeMoney(p.SaleConsideration)
	p.StampDutyFee = normalizeMoney(p.StampDutyFee)
	p.RegistrationFee = normalizeMoney(p.RegistrationFee)
	p.TotalFee = normalizeMoney(p.TotalFee)

	// Cross-check the registration fee. A fee equal to the fee-table total is
	// the table total itself misread as the fee, and a fee under 3 digits is
	// OCR noise; both are worse than no value.
	if p.RegistrationFee != "" {
		feeDigits := digitCount(p.RegistrationFee)
		if feeDigits < 3 {
			note("registration fee '%s' dropped (fewer than 3 digits)", p.RegistrationFee)
			p.RegistrationFee = ""
		} else if p.TotalFee != "" {
			fee := moneyValue(p.RegistrationFee)
			total := moneyValue(p.TotalFee)
			if total > 0 && fee/total == 1.0 {
				note("registration fee '%s' dropped (matches the fee table total)",
					p.RegistrationFee)
				p.RegistrationFee = ""
			}
		}
	}

	// the guidance value follows from an accepted fee: registration is
	// levied at 1% of the guidance value
	if p.RegistrationFee != "" {
		p.GuidanceValue = guidanceValue(p.RegistrationFee)
	} else {
		p.GuidanceValue = ""
	}

	if p.Pincode != "" && !pincodePattern.MatchString(p.Pincode) {
		note("property pincode '%s' failed shape check", p.Pincode)
		p.Pincode = ""
	}
}

func cleanParty(p *deeds.Party, role string, note func(string, ...any)) {
	p.Name, p.FatherName, p.DateOfBirth =
		splitName(p.Name, p.FatherName, p.DateOfBirth)

	if p.AadhaarNumber != "" {
		aadhaar := strings.NewReplacer(" ", "", "-", "").Replace(p.AadhaarNumber)
		if aadhaarPattern.MatchString(aadhaar) {
			p.AadhaarNumber = aadhaar
		} else {
			note("%s %s: aadhaar '%s' failed shape check", role, p.Name, p.AadhaarNumber)
			p.AadhaarNumber = ""
		}
	}

	if p.PanCardNumber != "" {
		pan := strings.ToUpper(strings.ReplaceAll(p.PanCardNumber, " ", ""))
		if panPattern.MatchString(pan) {
			p.PanCardNumber = pan
		} else {
			note("%s %s: PAN '%s' failed shape check", role, p.Name, p.PanCardNumber)
			p.PanCardNumber = ""
		}
	}

	if p.Pincode != "" && !pincodePattern.MatchString(p.Pincode) {
		p.Pincode = ""
	}
	p.DateOfBirth = normalizeDate(p.DateOfBirth)
}

// Splits relation markers out of a name: "John Doe S/O Richard Doe" yields
// name "John Doe" and father "Richard Doe". An embedded date moves to the
// date of birth when none was extracted separately. Existing father/DOB
// values are kept.
func splitName(name, father, dob string) (string, string, string) {
	if dob == "" {
		if m := isoDatePattern.FindString(name); m != "" {
			dob = m
			name = strings.TrimSpace(strings.Replace(name, m, "", 1))
		} else if m := dayFirstDatePattern.FindString(name); m != "" {
			dob = m
			name = strings.TrimSpace(strings.Replace(name, m, "", 1))
		}
	}

	if loc := relationPattern.FindStringIndex(name); loc != nil {
		before := strings.TrimRight(strings.TrimSpace(name[:loc[0]]), ",")
		after := strings.TrimSpace(name[loc[1]:])
		if father == "" && after != "" {
			father = strings.TrimRight(after, ",.")
		}
		if before != "" {
			name = before
		}
	}
	return strings.TrimSpace(name), father, dob
}

// Normalizes a monetary string while preserving its human form: whitespace
// is collapsed and stray OCR spacing inside the amount removed, but digit
// grouping, the Rs. prefix and the /- suffix stay as printed.
func normalizeMoney(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	// "Rs. 1, 23, 456" → "Rs. 1,23,456"
	s = strings.ReplaceAll(s, ", ", ",")
	return s
}

// counts the digits in a monetary string
func digitCount(s string) int {
	return len(digitPattern.FindAllString(s, -1))
}

// the numeric value of a monetary string (its digits, ignoring grouping)
func moneyValue(s string) float64 {
	digits := strings.Join(digitPattern.FindAllString(s, -1), "")
	if digits == "" {
		return 0
	}
	value, _ := strconv.ParseFloat(digits, 64)
	return value
}

// derives the guidance value from a registration fee levied at 1%,
// formatted with Indian digit grouping
func guidanceValue(fee string) string {
	value := int64(moneyValue(fee)) * 100
	return "Rs." + indianGrouping(value) + "/-"
}

// formats an integer with Indian digit grouping (1,23,45,678)
func indianGrouping(n int64) string {
	s := strconv.FormatInt(n, 10)
	if len(s) <= 3 {
		return s
	}
	head, tail := s[:len(s)-3], s[len(s)-3:]
	var groups []string
	for len(head) > 2 {
		groups = append([]string{head[len(head)-2:]}, groups...)
		head = head[:len(head)-2]
	}
	if head != "" {
		groups = append([]string{head}, groups...)
	}
	return strings.Join(append(groups, tail), ",")
}

// Normalizes a date to YYYY-MM-DD, accepting ISO and day-first forms.
// Anything unrecognized is dropped rather than guessed at.
func normalizeDate(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	if m := isoDatePattern.FindStringSubmatch(s); m != nil {
		return fmt.Sprintf("%s-%s-%s", m[1], m[2], m[3])
	}
	if m := dayFirstDatePattern.FindStringSubmatch(s); m != nil {
		day, _ := strconv.Atoi(m[1])
		month, _ := strconv.Atoi(m[2])
		return fmt.Sprintf("%s-%02d-%02d", m[3], month, day)
	}
	return ""
}
