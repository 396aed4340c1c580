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

package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

const validResponse = `{
  "transaction_date": "2024-03-15",
  "registration_office": "Hebbal",
  "property_details": {
    "sale_consideration": "Rs.28,62,413/-",
    "registration_fee": "28,624",
    "state": "Karnataka"
  },
  "buyers": [{"name": "Asha Rao", "aadhaar_number": "123456789012"}],
  "sellers": [{"name": "Vikram Shetty", "property_share": "100%"}],
  "confirming_parties": []
}`

func TestDecodeRecordAcceptsValidJson(t *testing.T) {
	record, err := decodeRecord(validResponse)
	assert.Nil(t, err)
	assert.Equal(t, "2024-03-15", record.TransactionDate)
	assert.Equal(t, "Hebbal", record.RegistrationOffice)
	assert.Equal(t, "Rs.28,62,413/-", record.Property.SaleConsideration)
	assert.Len(t, record.Buyers, 1)
	assert.Equal(t, "Asha Rao", record.Buyers[0].Name)
	assert.Len(t, record.Sellers, 1)
	assert.Equal(t, "100%", record.Sellers[0].PropertyShare)
}

func TestDecodeRecordStripsMarkdownFences(t *testing.T) {
	fenced := "```json\n" + validResponse + "\n```"
	record, err := decodeRecord(fenced)
	assert.Nil(t, err)
	assert.Equal(t, "Asha Rao", record.Buyers[0].Name)
}

func TestDecodeRecordRejectsNonJson(t *testing.T) {
	_, err := decodeRecord("I'm sorry, I can't extract that.")
	assert.NotNil(t, err)
	_, isParse := err.(*ParseError)
	assert.True(t, isParse)
}

func TestDecodeRecordRejectsTruncatedJson(t *testing.T) {
	_, err := decodeRecord(`{"buyers": [{"name": "Asha}`)
	assert.NotNil(t, err)
	_, isParse := err.(*ParseError)
	assert.True(t, isParse)
}

func TestDecodeRecordRejectsWrongShape(t *testing.T) {
	_, err := decodeRecord(`{"buyers": "not a list"}`)
	assert.NotNil(t, err)
	_, isShape := err.(*InvalidShapeError)
	assert.True(t, isShape)
}

func TestDecodeRecordRejectsEmptyExtraction(t *testing.T) {
	_, err := decodeRecord(`{"some_other_field": 1}`)
	assert.NotNil(t, err)
	_, isShape := err.(*InvalidShapeError)
	assert.True(t, isShape)
}
