// Package assertions checks envelopes against one-line expectations.
//
// Expressions have the form "subject operator [expected]":
//
//	status == 200
//	header Content-Type contains json
//	body.data.id exists
//	body.items length 3
//	body.items[0].name startsWith "a"
//	duration < 500
//	problem == NONE
//	body schema ./user.schema.json
//
// Subjects are status, statusText, ok, problem, duration, url, header <name>,
// body, body.<gjson path> and jsonpath <path>. Any other subject is read as a
// body path.
package assertions
