// Package bedrock streams completions from AWS Bedrock through the
// ConverseStream API. Model records address Bedrock either with a composite
// model id ("bedrock@<model-id>") or with a base URL of the form
// "bedrock://<region>"; the API key holds "ACCESS_KEY_ID:SECRET_ACCESS_KEY".
package bedrock
