package metrics

// InitializeMetrics pre-populates all expected label combinations so that
// every metric is exported from the first Prometheus scrape.
// Call this once at startup after metric registration.
func InitializeMetrics() {
	priorities := []string{"interactive_blocking", "interactive", "normal", "batch"}
	for _, p := range priorities {
		QueueTasksTotal.WithLabelValues(p, "success")
		QueueTasksTotal.WithLabelValues(p, "error")
		QueueTaskDuration.WithLabelValues(p)
	}

	for _, object := range []string{"file", "folder"} {
		for _, action := range []string{"added", "deleted"} {
			ReconcilerObjects.WithLabelValues(object, action)
		}
	}

	for _, artifact := range []string{"thumbnail", "preview_image", "preview_video"} {
		CacheArtifactsGenerated.WithLabelValues(artifact, "success")
		CacheArtifactsGenerated.WithLabelValues(artifact, "error")
		CacheGenerationDuration.WithLabelValues(artifact)
	}

	dbOps := []string{"initialize_schema", "upsert_folder", "upsert_file",
		"get_folder", "get_folder_by_path", "list_folders", "list_files",
		"delete_file", "delete_folder_tree", "counts", "file_ids",
		"stale_folders", "recent_folders", "recent_file_folders"}
	for _, op := range dbOps {
		DBQueryTotal.WithLabelValues(op, "success")
		DBQueryTotal.WithLabelValues(op, "error")
		DBQueryDuration.WithLabelValues(op)
	}

	backends := []string{"local", "s3", "drive"}
	backendOps := []string{"validate", "get_folder", "list_folders", "list_files",
		"download_file", "download_thumbnail", "download_preview",
		"move_file", "rename_file", "delete_file"}
	for _, b := range backends {
		for _, op := range backendOps {
			BackendCallsTotal.WithLabelValues(b, op, "success")
			BackendCallsTotal.WithLabelValues(b, op, "error")
			BackendCallDuration.WithLabelValues(b, op)
		}
	}
}
