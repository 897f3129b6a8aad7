// Package mapping generates the request and response mapping templates that
// translate between the HTTP front end and the synchronous state machine
// backend, together with the ordered classification rules that turn
// backend-reported status signals into HTTP status codes.
//
// Everything in this package is pure, configuration-time computation: it
// produces template strings and rule tables, it never executes them. The
// vtl package evaluates the produced templates and the gateway package
// applies the rules at request time.
package mapping
