// Package assets loads the html/template source of the book page.
//
// The built-in page is embedded in the binary. A theme directory set with
// assets.basePath (or --asset-path) may replace it:
//
//	{dir}/
//	└── templates/
//	    └── page.html
//
// Reads from a theme directory go through an os.Root, so neither ".." nor a
// symlink can reach files outside it. A template the directory lacks falls
// back to the built-in one.
package assets
