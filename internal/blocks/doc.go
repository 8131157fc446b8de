// Package blocks holds the block definition catalog: the built-in definitions,
// loading definitions from a directory of frontmatter or YAML files, hot reload,
// and rendering block prompts with text/template.
package blocks
