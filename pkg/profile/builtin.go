package profile

// DefaultProfileName is the profile used when none is specified
const DefaultProfileName = "default"

// builtinIdentity marks the embedded default in resolution chains
const builtinIdentity = "builtin:default"

// builtinDefault is the profile used when the scan root declares none:
// include everything except common noise directories and lockfiles.
const builtinDefault = `
name: default
globalExcludeRules:
  - - ["dirname", "startsWith", ".git"]
  - - ["dirname", "startsWith", "node_modules"]
  - - ["dirname", "startsWith", "vendor"]
  - - ["basename", "oneOf", [".DS_Store", "Thumbs.db"]]
  - - ["basename", "endsWith", ".lock"]
`

// StarterProfile is the commented scaffold written by the init command
const StarterProfile = `# Profile for copytree. Select files with [field, operator, value] rules;
# sets AND their rules, the group ORs its sets.
name: default

rules:
  - - ["extension", "oneOf", ["go", "md", "mod"]]

globalExcludeRules:
  - - ["dirname", "startsWith", ".git"]
  - - ["dirname", "startsWith", "node_modules"]
  - - ["dirname", "startsWith", "vendor"]

always:
  include: []
  exclude: []
`
