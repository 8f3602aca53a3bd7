// Package render talks to the headless browser that rasterises HTML.
//
// The browser runs outside htmlshot. HTTPRenderer speaks the browserless
// /screenshot API: it posts the document together with viewport and image
// options and reads back the image bytes. Concurrency is bounded by a
// semaphore and calls may be paced with a token bucket.
//
// BuildDocument prepares processed template output for the browser by
// making it a complete UTF-8 document and injecting extra CSS.
package render
