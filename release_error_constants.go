package main

const invalidOption = 100
const missingAccessToken = 101
const invalidSettingsFile = 102

const noTagsFound = 200
const tagNotFound = 201
const unknownDistribution = 202
const manifestNotFound = 203
const manifestMalformed = 204
const componentMissingFromManifest = 205

const externalCommandFailed = 300

const artifactMissing = 400

const hostingApiFailed = 500
