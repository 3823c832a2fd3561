/*
Package reader implements the read-extraction endpoint: an SSRF-guarded
fetch of a single page followed by article extraction. Unlike the
embedding proxy it does not rewrite or proxy subsequent traffic; it is
a read-only collaborator returning extracted text, sanitized HTML, and
page metadata.
*/
package reader
