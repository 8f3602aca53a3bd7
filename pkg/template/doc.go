// Package template substitutes variables into HTML templates before they are
// sent to the rendering backend.
//
// # Placeholders
//
//   - {{name}} - replaced with the string form of the variable; null renders
//     as an empty string and names that were not supplied stay as written
//
// # Conditionals
//
//	{{#if name}} shown when truthy {{else}} shown otherwise {{/if}}
//	{{#unless name}} shown when falsy {{/unless}}
//
// Truthiness: null is false, booleans are themselves, strings are false when
// blank after trimming, numbers when zero, lists when empty and objects when
// they have no keys. Blocks nest.
//
// # Iteration
//
//	{{#items}} ... {{/items}}
//
// The body is repeated once per list element. Inside it:
//   - {{.}} - the element itself (non-object elements)
//   - {{field}} - a property of an object element
//   - {{@index}} / {{@number}} - 0-based and 1-based position
//   - {{@first}} / {{@last}} - "true" or "false"
//
// Names not found on the element resolve against the enclosing scope. If the
// block name is not a list the markers are left in the output as written.
//
// # Processing Model
//
// A template is tokenized, the opening and closing markers are paired in a
// single stack pass, and a recursive-descent parser builds a small AST that
// is evaluated once. Unterminated blocks and stray closing markers are kept
// as literal text and reported as Issues rather than errors.
//
// # Companion Operations
//
//   - ExtractVariables lists the names a template needs at the top level
//   - ValidateVariables reports which of those names were not supplied
//   - SanitizeVariables escapes HTML in variable values
//   - Summarize combines the three with a processing run
package template
